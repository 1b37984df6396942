package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakorolev/nano-banana-ru/internal/config"
	"github.com/ilyakorolev/nano-banana-ru/pkg/credential"
	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/generator"
	"github.com/ilyakorolev/nano-banana-ru/pkg/imgutil"
	"github.com/ilyakorolev/nano-banana-ru/pkg/prompt"
	"github.com/ilyakorolev/nano-banana-ru/pkg/utils"
)

const (
	promptPreviewLimit = 100
	rule               = "============================================================"
)

// ErrNoInput はプロンプトも仕様も指定されなかったことを示します。
var ErrNoInput = errors.New("no prompt or specification given")

// CredentialResolver は API キーを解決するインターフェースです。
type CredentialResolver interface {
	Resolve() (credential.Credential, error)
}

// ImagePersister は画像をファイルに保存するインターフェースです。
type ImagePersister interface {
	Persist(data []byte, path string) (*imgutil.Result, error)
}

// Pipeline は入力の解釈から保存までの各段階を順番に実行します。
type Pipeline struct {
	cfg       config.Config
	resolver  CredentialResolver
	generator generator.ImageGenerator
	persister ImagePersister
	stdin     io.Reader
	out       io.Writer
	now       func() time.Time
}

// Option は Pipeline の設定を変更します。
type Option func(*Pipeline)

func WithStdin(r io.Reader) Option {
	return func(p *Pipeline) { p.stdin = r }
}

// WithOutput はユーザー向けの進捗表示の出力先を変更します。
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New は依存関係を注入して Pipeline を作ります。
func New(cfg config.Config, resolver CredentialResolver, gen generator.ImageGenerator, persister ImagePersister, opts ...Option) (*Pipeline, error) {
	if resolver == nil {
		return nil, errors.New("credential resolver is required")
	}
	if gen == nil {
		return nil, errors.New("image generator is required")
	}
	if persister == nil {
		return nil, errors.New("image persister is required")
	}
	p := &Pipeline{
		cfg:       cfg,
		resolver:  resolver,
		generator: gen,
		persister: persister,
		stdin:     os.Stdin,
		out:       os.Stdout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run はプロンプトの組み立て、画像生成、保存を1回だけ実行します。
// DryRun の場合はプロンプトを表示するだけで、認証情報の解決も通信も行わず nil を返します。
func (p *Pipeline) Run(ctx context.Context) (*imgutil.Result, error) {
	opts := p.cfg.Options

	compiled, err := p.buildPrompt()
	if err != nil {
		return nil, err
	}

	if opts.ShowPrompt || opts.DryRun {
		p.printf("%s\nPROMPT:\n%s\n%s\n%s\n", rule, rule, compiled.String(), rule)
	}
	if opts.DryRun {
		slog.InfoContext(ctx, "ドライランのため画像生成を行いません", "prompt_bytes", len(compiled.String()))
		return nil, nil
	}

	cred, err := p.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "API キーを解決しました", "credential", cred.String())

	model := domain.ResolveModel(p.cfg.Model)
	p.printf("Model: %s\n", model)
	p.printf("Generating image...\n")

	resp, err := p.generator.Generate(ctx, domain.ImageGenerationRequest{
		Prompt: compiled.String(),
		APIKey: cred.Value,
		Model:  p.cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = imgutil.DefaultOutputPath(opts.SpecPath, p.now())
	}

	result, err := p.persister.Persist(resp.Data, outputPath)
	if err != nil {
		return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	detected := result.Format.MimeType()
	if resp.MimeType != "" && resp.MimeType != detected && p.cfg.Options.JPEGQuality == 0 {
		slog.WarnContext(ctx, "応答の MIME タイプと画像の形式が一致しません", "declared", resp.MimeType, "detected", detected)
	}
	if w, h, err := imgutil.Dimensions(resp.Data); err == nil {
		slog.InfoContext(ctx, "画像を保存しました", "path", result.Path, "width", w, "height", h, "format", result.Format, "mime_type", detected)
	} else {
		slog.DebugContext(ctx, "画像サイズを取得できませんでした", "error", err)
	}

	p.printf("Saved: %s\n", result.Path)
	p.printf("Size: %.1f KB\n", utils.FormatKB(result.Bytes))
	return result, nil
}

// buildPrompt は自由記述、標準入力、仕様ファイルの優先順でプロンプトを決めます。
func (p *Pipeline) buildPrompt() (prompt.Prompt, error) {
	opts := p.cfg.Options
	switch {
	case strings.TrimSpace(opts.Prompt) != "":
		compiled := prompt.FromText(opts.Prompt)
		p.printf("Prompt: %s\n", compiled.Preview(promptPreviewLimit))
		return compiled, nil

	case opts.Stdin:
		spec, err := domain.ReadSpecification(p.stdin)
		if err != nil {
			return prompt.Prompt{}, fmt.Errorf("stdin: %w", err)
		}
		return prompt.Compile(spec), nil

	case opts.SpecPath != "":
		spec, err := domain.LoadSpecification(opts.SpecPath)
		if err != nil {
			return prompt.Prompt{}, err
		}
		slog.Debug("仕様ファイルを読み込みました", "path", opts.SpecPath, "schema", spec.Schema().Name)
		return prompt.Compile(spec), nil
	}
	return prompt.Prompt{}, ErrNoInput
}

func (p *Pipeline) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}
