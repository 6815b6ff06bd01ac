package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker/kiwoom"
	"github.com/stockbot/gostock/internal/monitor"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/internal/trader"
	"github.com/stockbot/gostock/pkg/config"
	"github.com/stockbot/gostock/pkg/logger"
	"github.com/stockbot/gostock/pkg/persistence"
	"github.com/stockbot/gostock/pkg/secretstore"
	"github.com/stockbot/gostock/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径 (YAML/JSON)")
	envFile := flag.String("env", ".env", "环境变量文件路径")
	flag.Parse()

	// .env 缺失不报错，环境变量仍可由外部注入
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.Fatalf("启动失败: %v", err)
	}
}

func run(cfg config.Config) error {
	appKey, appSecret, account, err := loadCredentials(cfg)
	if err != nil {
		return err
	}
	if account != "" {
		cfg.Broker.AccountNumber = account
	}

	st, err := store.New(persistence.NewJSONFileStore(cfg.StateFile))
	if err != nil {
		return err
	}

	adapter := kiwoom.New(cfg.Broker, appKey, appSecret)
	tr := trader.New(adapter, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tr.Start(ctx); err != nil {
		return err
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		tr.Stop(ctx)
	})

	if cfg.Monitor.Enabled {
		mon, err := monitor.New(cfg.Monitor, st, tr)
		if err != nil {
			// 监控服务不可用不阻止交易
			logrus.Errorf("只读状态服务启动失败: %v", err)
		} else {
			go func() {
				if err := mon.Run(ctx); err != nil {
					logrus.Errorf("只读状态服务异常退出: %v", err)
				}
			}()
		}
	}

	logrus.Infof("자동매매 시스템 시작 (账户 %s)", tr.Account())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logrus.Infof("收到信号 %s，开始关闭", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)
	return nil
}

// loadCredentials 从加密凭证存储读取 app key/secret 与账户号
//
// 首次运行时允许用环境变量 KIWOOM_APP_KEY / KIWOOM_APP_SECRET /
// KIWOOM_ACCOUNT_NO 注入，并写入凭证存储供后续使用。
func loadCredentials(cfg config.Config) (appKey, appSecret, account string, err error) {
	key, err := secretstore.ParseKey(os.Getenv(cfg.SecretStore.KeyEnv))
	if err != nil {
		return "", "", "", err
	}
	if key == nil {
		logrus.Warnf("%s 未设置，凭证存储将以未加密模式打开", cfg.SecretStore.KeyEnv)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.SecretStore.Path,
		EncryptionKey: key,
	})
	if err != nil {
		return "", "", "", err
	}
	defer ss.Close()

	load := func(storeKey, envName string) (string, error) {
		val, found, err := ss.GetString(storeKey)
		if err != nil {
			return "", err
		}
		if found && val != "" {
			return val, nil
		}
		if env := os.Getenv(envName); env != "" {
			if err := ss.SetString(storeKey, env); err != nil {
				return "", err
			}
			return env, nil
		}
		return "", nil
	}

	if appKey, err = load(secretstore.KeyAppKey, "KIWOOM_APP_KEY"); err != nil {
		return "", "", "", err
	}
	if appSecret, err = load(secretstore.KeyAppSecret, "KIWOOM_APP_SECRET"); err != nil {
		return "", "", "", err
	}
	if account, err = load(secretstore.KeyAccountNo, "KIWOOM_ACCOUNT_NO"); err != nil {
		return "", "", "", err
	}

	if appKey == "" || appSecret == "" {
		return "", "", "", fmt.Errorf("缺少券商凭证：请设置 KIWOOM_APP_KEY / KIWOOM_APP_SECRET")
	}
	return appKey, appSecret, account, nil
}
