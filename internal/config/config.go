package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakorolev/nano-banana-ru/pkg/credential"
	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/generator"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"

	envModel    = "NANOBANANA_MODEL"
	envBackend  = "NANOBANANA_BACKEND"
	envEndpoint = "GEMINI_API_URL"
	envTimeout  = "NANOBANANA_TIMEOUT"
	envLogLevel = "NANOBANANA_LOG_LEVEL"
)

// Options はコマンドラインから渡される1回分の実行指定です。
type Options struct {
	SpecPath    string
	Prompt      string
	OutputPath  string
	Stdin       bool
	ShowPrompt  bool
	DryRun      bool
	JPEGQuality int
}

// Config はアプリケーション全体の実行時設定です。
type Config struct {
	APIKeyEnv string
	Model     string
	Backend   string
	Endpoint  string
	Timeout   time.Duration
	LogLevel  slog.Level
	Options   Options
}

// LoadConfig は環境変数から基本設定を読み込みます。
// 解釈できない値は警告を出して既定値を使います。
func LoadConfig() Config {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) Config {
	cfg := Config{
		APIKeyEnv: credential.DefaultEnvKey,
		Model:     getEnv(lookup, envModel, domain.DefaultModelAlias),
		Backend:   strings.ToLower(getEnv(lookup, envBackend, BackendREST)),
		Endpoint:  getEnv(lookup, envEndpoint, generator.DefaultEndpoint),
		Timeout:   generator.DefaultTimeout,
		LogLevel:  slog.LevelInfo,
	}

	if raw, ok := lookup(envTimeout); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("タイムアウトの指定を解釈できないため既定値を使います", "env", envTimeout, "value", raw)
		} else {
			cfg.Timeout = d
		}
	}

	if raw, ok := lookup(envLogLevel); ok && raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			slog.Warn("ログレベルの指定を解釈できないため INFO を使います", "env", envLogLevel, "value", raw)
			cfg.LogLevel = slog.LevelInfo
		}
	}

	return cfg
}

// Validate はフラグを反映した後の設定を検証します。
func (c Config) Validate() error {
	switch c.Backend {
	case BackendREST, BackendSDK:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendREST, BackendSDK)
	}
	if c.Options.JPEGQuality < 0 || c.Options.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.Options.JPEGQuality)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func getEnv(lookup func(string) (string, bool), key, def string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}
