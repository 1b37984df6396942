package imgutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFileMode  fs.FileMode = 0o644
	outputTimeLayout             = "20060102_150405"
)

// Result は保存結果です。
type Result struct {
	Path   string
	Bytes  int
	Format Format
}

// Persister は画像データをファイルに書き出します。
type Persister struct {
	jpegQuality int
}

// PersistOption は Persister の設定を変更します。
type PersistOption func(*Persister)

// WithJPEGQuality は保存前に JPEG へ再エンコードします。0 なら元のバイト列をそのまま保存します。
func WithJPEGQuality(quality int) PersistOption {
	return func(p *Persister) { p.jpegQuality = quality }
}

func NewPersister(opts ...PersistOption) *Persister {
	p := &Persister{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist は data を path に保存します。
// path に拡張子がなければマジックバイトから判定した拡張子を付け、既にあればそのまま使います。
// 書き込みは同じディレクトリの一時ファイル経由で行うため、途中で失敗しても中途半端なファイルは残りません。
func (p *Persister) Persist(data []byte, path string) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}
	if path == "" {
		return nil, errors.New("output path is required")
	}

	if p.jpegQuality > 0 {
		compressed, err := CompressToJPEG(data, p.jpegQuality)
		if err != nil {
			return nil, fmt.Errorf("JPEG変換に失敗しました: %w", err)
		}
		slog.Debug("画像をJPEGに再エンコードしました", "before", len(data), "after", len(compressed), "quality", p.jpegQuality)
		data = compressed
	}

	format := DetectFormat(data)
	if !hasExtension(path) {
		path += format.Ext()
	}

	if err := writeFileAtomic(path, data, defaultFileMode); err != nil {
		return nil, err
	}
	return &Result{Path: path, Bytes: len(data), Format: format}, nil
}

// hasExtension は path のファイル名に拡張子があるかを返します。
// "image." のように末尾がドットだけの名前や ".hidden" のようなドットファイルは拡張子なしです。
func hasExtension(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return ext != "" && ext != "." && ext != base
}

func writeFileAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("画像の書き込みに失敗しました: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("画像の書き込みに失敗しました: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("画像の書き込みに失敗しました: %w", err)
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("パーミッションの設定に失敗しました: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	return nil
}

// DefaultOutputPath は出力先が指定されなかった場合のパスを作ります。
// 仕様ファイルがあればその隣に <名前>_<日時>.png、なければカレントに generated_<日時>.png です。
func DefaultOutputPath(specPath string, now time.Time) string {
	stamp := now.Format(outputTimeLayout)
	if specPath == "" {
		return "generated_" + stamp + FormatPNG.Ext()
	}
	base := filepath.Base(specPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(specPath), stem+"_"+stamp+FormatPNG.Ext())
}
