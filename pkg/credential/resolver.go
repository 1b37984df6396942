package credential

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/joho/godotenv"
)

const (
	// DefaultEnvKey は API キーを保持する環境変数名です。
	DefaultEnvKey = "GEMINI_API_KEY"

	envFileName   = ".env"
	userConfigDir = ".claude"
)

// Credential は解決済みの API キーと、その取得元です。
type Credential struct {
	Value  string
	Source string // "env:GEMINI_API_KEY" またはファイルパス
}

// String はログ出力時にキーが漏れないよう、値を伏せた表現を返します。
func (c Credential) String() string {
	if c.Value == "" {
		return "<empty>"
	}
	return "****@" + c.Source
}

// Resolver は環境変数と .env ファイル群から API キーを探します。
// 探索順は Candidates が返す順で固定され、最初に見つかったものが採用されます。
type Resolver struct {
	envKey      string
	lookupEnv   func(string) (string, bool)
	workDir     string
	execDir     string
	homeDir     string
	exportToEnv bool
}

// Option は Resolver の設定を変更します。
type Option func(*Resolver)

func WithEnvKey(key string) Option {
	return func(r *Resolver) { r.envKey = key }
}

// WithLookupEnv は環境変数の参照関数を差し替えます（テスト用）。
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = fn }
}

func WithWorkDir(dir string) Option {
	return func(r *Resolver) { r.workDir = dir }
}

func WithExecDir(dir string) Option {
	return func(r *Resolver) { r.execDir = dir }
}

func WithHomeDir(dir string) Option {
	return func(r *Resolver) { r.homeDir = dir }
}

// WithExportToEnv は .env から見つけたキーをプロセスの環境変数にも設定します。
// 環境変数を直接読む古いコード向けの互換オプションで、既定では無効です。
func WithExportToEnv(enabled bool) Option {
	return func(r *Resolver) { r.exportToEnv = enabled }
}

// NewResolver は実行環境のディレクトリを初期値として Resolver を作ります。
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		envKey:    DefaultEnvKey,
		lookupEnv: os.LookupEnv,
	}
	if wd, err := os.Getwd(); err == nil {
		r.workDir = wd
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		r.execDir = filepath.Dir(exe)
	}
	if home, err := os.UserHomeDir(); err == nil {
		r.homeDir = home
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates は探索する .env ファイルを優先度順に返します。
// 取得できなかったディレクトリの候補は含まれません。
func (r *Resolver) Candidates() []string {
	var paths []string
	add := func(elem ...string) {
		if elem[0] == "" {
			return
		}
		paths = append(paths, filepath.Join(elem...))
	}

	add(r.workDir, envFileName)
	add(r.execDir, envFileName)
	if r.execDir != "" {
		add(filepath.Dir(r.execDir), envFileName)
	}
	add(r.homeDir, envFileName)
	add(r.homeDir, userConfigDir, envFileName)
	return paths
}

// Resolve は API キーを探して返します。
// どこにも見つからなければ domain.ErrMissingCredential を返します。
func (r *Resolver) Resolve() (Credential, error) {
	if v, ok := r.lookupEnv(r.envKey); ok && v != "" {
		return Credential{Value: v, Source: "env:" + r.envKey}, nil
	}

	for _, path := range r.Candidates() {
		v, ok := lookupFile(path, r.envKey)
		if !ok {
			continue
		}
		slog.Debug("APIキーを .env ファイルから読み込みました", "path", path)
		if r.exportToEnv {
			if err := os.Setenv(r.envKey, v); err != nil {
				slog.Warn("環境変数への書き戻しに失敗しました", "key", r.envKey, "error", err)
			}
		}
		return Credential{Value: v, Source: path}, nil
	}

	return Credential{}, domain.ErrMissingCredential
}

// lookupFile は .env ファイルから key を探します。
// 1行ずつ解釈し、解釈できない行は読み飛ばします。同じキーが複数あれば後の行が勝ちます。
// 読めないファイルは「キーなし」として扱います。
func lookupFile(path, key string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug(".env ファイルを読み飛ばしました", "path", path, "error", err)
		}
		return "", false
	}

	var value string
	var found bool
	for _, line := range strings.Split(string(data), "\n") {
		k, v, ok := parseLine(line)
		if ok && k == key {
			value, found = v, true
		}
	}
	return value, found && value != ""
}

// parseLine は KEY=VALUE 形式の1行を解釈します。
// 空行、# で始まる行、= を含まない行は ok=false です。
// 値は前後の空白を除き、対になった引用符で囲まれていれば外します。
// 引用符付きの値は godotenv に渡し、解釈できなければ引用符を外しただけの値を使います。
func parseLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	name, raw, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(name)
	if key == "" {
		return "", "", false
	}
	raw = strings.TrimSpace(raw)
	if !isQuoted(raw) {
		return key, raw, true
	}
	if vars, err := godotenv.Unmarshal(key + "=" + raw); err == nil {
		if v, exists := vars[key]; exists {
			return key, v, true
		}
	}
	return key, raw[1 : len(raw)-1], true
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '"' || q == '\'') && s[len(s)-1] == q
}
