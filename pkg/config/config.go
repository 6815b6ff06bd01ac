package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// BrokerConfig 券商接入配置
// AppKey/AppSecret 不写在配置文件里，从 secretstore 或环境变量读取
type BrokerConfig struct {
	BaseURL       string `yaml:"base_url" json:"base_url"`
	WSURL         string `yaml:"ws_url" json:"ws_url"`
	AccountNumber string `yaml:"account_number" json:"account_number"`
	TimeoutSec    int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// MonitorConfig 只读状态服务配置
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
	DBPath  string `yaml:"db_path" json:"db_path"`
}

// SecretStoreConfig 凭证存储配置
type SecretStoreConfig struct {
	Path string `yaml:"path" json:"path"`
	// KeyEnv 指向存放 32 字节加密密钥的环境变量名
	KeyEnv string `yaml:"key_env" json:"key_env"`
}

// Config 应用运行时配置（区别于 trading_state.json 中的持久化交易状态）
type Config struct {
	Log         LogConfig         `yaml:"log" json:"log"`
	StateFile   string            `yaml:"state_file" json:"state_file"`
	DataDir     string            `yaml:"data_dir" json:"data_dir"`
	Broker      BrokerConfig      `yaml:"broker" json:"broker"`
	Monitor     MonitorConfig     `yaml:"monitor" json:"monitor"`
	SecretStore SecretStoreConfig `yaml:"secret_store" json:"secret_store"`
}

// Default 返回默认配置
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			File:       "logs/trading.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		StateFile: "data/trading_state.json",
		DataDir:   "data",
		Broker: BrokerConfig{
			BaseURL:    "https://api.kiwoom.com",
			WSURL:      "wss://api.kiwoom.com:10000/api/dostk/websocket",
			TimeoutSec: 10,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8940",
			DBPath:  "data/executions.db",
		},
		SecretStore: SecretStoreConfig{
			Path:   "data/secrets",
			KeyEnv: "GOSTOCK_SECRET_KEY",
		},
	}
}

// Load 从 YAML/JSON 文件加载配置，文件中省略的字段保留默认值
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read config file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, errors.Wrap(err, "parse config file")
	}
	return cfg, nil
}
