package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ilyakorolev/nano-banana-ru/internal/config"
	"github.com/ilyakorolev/nano-banana-ru/pkg/credential"
	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/imgutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	resolver  *mockResolver
	generator *mockGenerator
	persister *mockPersister
	out       *bytes.Buffer
}

func newFixture() *fixture {
	return &fixture{
		resolver:  &mockResolver{cred: credential.Credential{Value: "secret", Source: "env:GEMINI_API_KEY"}},
		generator: &mockGenerator{},
		persister: &mockPersister{},
		out:       &bytes.Buffer{},
	}
}

func (f *fixture) pipeline(t *testing.T, opts config.Options, extra ...Option) *Pipeline {
	t.Helper()
	cfg := config.Config{Model: "pro", Backend: config.BackendREST, Timeout: time.Minute, Options: opts}
	all := append([]Option{WithOutput(f.out), WithClock(func() time.Time { return fixedNow })}, extra...)
	p, err := New(cfg, f.resolver, f.generator, f.persister, all...)
	require.NoError(t, err)
	return p
}

func writeSpec(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestNew(t *testing.T) {
	f := newFixture()
	cfg := config.Config{}

	_, err := New(cfg, nil, f.generator, f.persister)
	assert.Error(t, err)
	_, err = New(cfg, f.resolver, nil, f.persister)
	assert.Error(t, err)
	_, err = New(cfg, f.resolver, f.generator, nil)
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("自由記述プロンプトをそのまま送って保存する", func(t *testing.T) {
		f := newFixture()
		p := f.pipeline(t, config.Options{Prompt: "a banana on the moon", OutputPath: "out/banana"})

		result, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, "a banana on the moon", f.generator.lastReq.Prompt)
		assert.Equal(t, "secret", f.generator.lastReq.APIKey)
		assert.Equal(t, "pro", f.generator.lastReq.Model)
		assert.Equal(t, "out/banana", f.persister.lastPath)
		assert.Equal(t, "out/banana.png", result.Path)

		out := f.out.String()
		assert.Contains(t, out, "Prompt: a banana on the moon\n")
		assert.Contains(t, out, "Model: "+domain.ModelPro+"\n")
		assert.Contains(t, out, "Saved: out/banana.png\n")
		assert.Contains(t, out, "Size: 0.0 KB\n")
	})

	t.Run("仕様ファイルからプロンプトを組み立て、隣に保存する", func(t *testing.T) {
		f := newFixture()
		dir := t.TempDir()
		specPath := writeSpec(t, dir, "bottle.json", `{"marketing_image":{"subject":{"name":"Bottle"}}}`)
		p := f.pipeline(t, config.Options{SpecPath: specPath})

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(f.generator.lastReq.Prompt, "Generate a high-quality image based on this detailed specification.\n"))
		assert.Contains(t, f.generator.lastReq.Prompt, "Image type: Marketing Image")
		assert.Equal(t, filepath.Join(dir, "bottle_20250102_030405.png"), f.persister.lastPath)
	})

	t.Run("標準入力の仕様を使い、出力はカレントの generated_", func(t *testing.T) {
		f := newFixture()
		stdin := strings.NewReader(`{"illustration":{"style":{"type":"watercolor"}}}`)
		p := f.pipeline(t, config.Options{Stdin: true}, WithStdin(stdin))

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Contains(t, f.generator.lastReq.Prompt, "Style: watercolor")
		assert.Equal(t, "generated_20250102_030405.png", f.persister.lastPath)
	})

	t.Run("自由記述は仕様ファイルより優先し、出力名は仕様ファイルから作る", func(t *testing.T) {
		f := newFixture()
		dir := t.TempDir()
		specPath := writeSpec(t, dir, "slide.json", `{"presentation_slide":{}}`)
		p := f.pipeline(t, config.Options{Prompt: "override", SpecPath: specPath})

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, "override", f.generator.lastReq.Prompt)
		assert.Equal(t, filepath.Join(dir, "slide_20250102_030405.png"), f.persister.lastPath)
	})

	t.Run("ドライランは認証も通信もしない", func(t *testing.T) {
		f := newFixture()
		f.resolver.err = domain.ErrMissingCredential
		p := f.pipeline(t, config.Options{Prompt: "x", DryRun: true})

		result, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Zero(t, f.resolver.calls)
		assert.Zero(t, f.generator.calls)
		assert.Zero(t, f.persister.calls)
		assert.Contains(t, f.out.String(), "PROMPT:\n")
	})

	t.Run("ShowPrompt はプロンプト全体を表示してから生成する", func(t *testing.T) {
		f := newFixture()
		p := f.pipeline(t, config.Options{Prompt: "line one\nline two", ShowPrompt: true})

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Contains(t, f.out.String(), rule+"\nPROMPT:\n"+rule+"\nline one\nline two\n"+rule+"\n")
		assert.Equal(t, 1, f.generator.calls)
	})

	t.Run("入力がなければ ErrNoInput", func(t *testing.T) {
		f := newFixture()
		p := f.pipeline(t, config.Options{Prompt: "   "})

		_, err := p.Run(ctx)

		assert.ErrorIs(t, err, ErrNoInput)
		assert.Zero(t, f.resolver.calls)
	})

	t.Run("仕様ファイルがなければ ErrSpecNotFound", func(t *testing.T) {
		f := newFixture()
		p := f.pipeline(t, config.Options{SpecPath: filepath.Join(t.TempDir(), "missing.json")})

		_, err := p.Run(ctx)

		assert.ErrorIs(t, err, domain.ErrSpecNotFound)
		assert.Zero(t, f.generator.calls)
	})

	t.Run("壊れた標準入力は ErrMalformedSpec", func(t *testing.T) {
		f := newFixture()
		p := f.pipeline(t, config.Options{Stdin: true}, WithStdin(strings.NewReader("{not json")))

		_, err := p.Run(ctx)

		assert.ErrorIs(t, err, domain.ErrMalformedSpec)
	})

	t.Run("API キーがなければ生成しない", func(t *testing.T) {
		f := newFixture()
		f.resolver.err = domain.ErrMissingCredential
		p := f.pipeline(t, config.Options{Prompt: "x"})

		_, err := p.Run(ctx)

		assert.ErrorIs(t, err, domain.ErrMissingCredential)
		assert.Zero(t, f.generator.calls)
	})

	t.Run("生成の失敗はそのまま返し、保存しない", func(t *testing.T) {
		f := newFixture()
		remote := &domain.RemoteError{StatusCode: 429, Message: "Quota exceeded"}
		f.generator.generateFunc = func(domain.ImageGenerationRequest) (*domain.ImageResponse, error) { return nil, remote }
		p := f.pipeline(t, config.Options{Prompt: "x"})

		_, err := p.Run(ctx)

		assert.Same(t, remote, err)
		assert.Zero(t, f.persister.calls)
	})

	t.Run("保存の失敗はラップして返す", func(t *testing.T) {
		f := newFixture()
		f.persister.err = errors.New("disk full")
		p := f.pipeline(t, config.Options{Prompt: "x"})

		_, err := p.Run(ctx)

		assert.ErrorIs(t, err, f.persister.err)
	})

	t.Run("応答の MIME タイプと実際の形式が違えば警告する", func(t *testing.T) {
		logs := captureLogs(t)
		f := newFixture()
		f.generator.generateFunc = func(domain.ImageGenerationRequest) (*domain.ImageResponse, error) {
			return &domain.ImageResponse{Data: []byte("\x89PNG\r\n\x1a\nbody"), MimeType: "image/jpeg"}, nil
		}
		p := f.pipeline(t, config.Options{Prompt: "x"})

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Contains(t, logs.String(), "応答の MIME タイプと画像の形式が一致しません")
		assert.Contains(t, logs.String(), "declared=image/jpeg")
		assert.Contains(t, logs.String(), "detected=image/png")
	})

	t.Run("MIME タイプが一致していれば警告しない", func(t *testing.T) {
		logs := captureLogs(t)
		f := newFixture()
		p := f.pipeline(t, config.Options{Prompt: "x"})

		_, err := p.Run(ctx)

		require.NoError(t, err)
		assert.NotContains(t, logs.String(), "一致しません")
	})

	t.Run("実際の Persister で書き込む", func(t *testing.T) {
		f := newFixture()
		dir := t.TempDir()
		cfg := config.Config{Model: "flash", Options: config.Options{Prompt: "x", OutputPath: filepath.Join(dir, "img")}}
		p, err := New(cfg, f.resolver, f.generator, NewPersister(cfg), WithOutput(f.out))
		require.NoError(t, err)

		result, err := p.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "img.png"), result.Path)
		assert.Equal(t, imgutil.FormatPNG, result.Format)
		data, err := os.ReadFile(result.Path)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG\r\n\x1a\nbody", string(data))
		assert.Equal(t, "flash", f.generator.lastReq.Model)
	})
}
