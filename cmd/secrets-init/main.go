package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stockbot/gostock/pkg/secretstore"
)

// 把키움 app key/secret 与账户号写入加密凭证存储的一次性工具。
// 值的来源优先级：命令行 > 环境变量（含 -env 指定的 .env 文件）。
func main() {
	var (
		envFile   = flag.String("env", ".env", "环境变量文件路径")
		dbPath    = flag.String("db", getenv("GOSTOCK_SECRET_DB", "data/secrets"), "凭证存储路径")
		secretKey = flag.String("secret-key", getenv("GOSTOCK_SECRET_KEY", ""), "加密密钥 (32 字节 base64/hex)")
		appKey    = flag.String("app-key", "", "키움 REST API app key")
		appSecret = flag.String("app-secret", "", "키움 REST API secret key")
		account   = flag.String("account", "", "계좌번호")
	)
	flag.Parse()

	_ = godotenv.Load(*envFile)

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("缺少加密密钥：设置 GOSTOCK_SECRET_KEY 或传 -secret-key"))
	}

	entries := map[string]string{
		secretstore.KeyAppKey:    pick(*appKey, "KIWOOM_APP_KEY"),
		secretstore.KeyAppSecret: pick(*appSecret, "KIWOOM_APP_SECRET"),
		secretstore.KeyAccountNo: pick(*account, "KIWOOM_ACCOUNT_NO"),
	}
	if entries[secretstore.KeyAppKey] == "" || entries[secretstore.KeyAppSecret] == "" {
		fatal(fmt.Errorf("app key 与 secret 必填：用 -app-key/-app-secret 或 KIWOOM_APP_KEY/KIWOOM_APP_SECRET"))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	written := 0
	for k, v := range entries {
		if v == "" {
			continue
		}
		if err := ss.SetString(k, v); err != nil {
			fatal(err)
		}
		written++
	}
	fmt.Fprintf(os.Stderr, "已写入 %d 项凭证到 %s\n", written, *dbPath)
}

func pick(flagVal, envName string) string {
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envName))
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}
