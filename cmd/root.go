package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ilyakorolev/nano-banana-ru/internal/config"
	"github.com/ilyakorolev/nano-banana-ru/internal/pipeline"
	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"

	"github.com/spf13/cobra"
)

const apiKeyURL = "https://aistudio.google.com/apikey"

// newRootCmd はフラグ付きのルートコマンドを作ります。テストごとに新しいものを使えるよう毎回生成します。
func newRootCmd() *cobra.Command {
	var (
		opts    config.Options
		model   string
		backend string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "nanobanana [spec.json]",
		Short: "Gemini で JSON 仕様やテキストから画像を生成します",
		Long: `構造化された JSON 仕様（marketing_image, presentation_slide, icon_set, illustration）
または自由記述のプロンプトから、Gemini の画像生成モデルで画像を1枚生成して保存します。

API キーは GEMINI_API_KEY 環境変数、または ./.env, <実行ファイルの場所>/.env, ~/.env, ~/.claude/.env から読み込みます。`,
		Example: `  nanobanana spec.json
  nanobanana spec.json -o output.png
  nanobanana -p "A cute banana character" -m flash
  cat spec.json | nanobanana --stdin --show-prompt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.SpecPath = args[0]
			}

			// 1. 環境変数から基本設定をロード
			cfg := config.LoadConfig()

			// 2. コマンドライン引数の値を反映
			cfg.Options = opts
			if cmd.Flags().Changed("model") {
				cfg.Model = model
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = strings.ToLower(backend)
			}
			if verbose {
				cfg.LogLevel = slog.LevelDebug
			}
			setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			if err := cfg.Validate(); err != nil {
				return err
			}

			gen, err := pipeline.NewGenerator(cfg)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, pipeline.NewResolver(cfg), gen, pipeline.NewPersister(cfg),
				pipeline.WithStdin(cmd.InOrStdin()),
				pipeline.WithOutput(cmd.OutOrStdout()),
			)
			if err != nil {
				return err
			}

			slog.Debug("画像生成を開始します",
				"spec", cfg.Options.SpecPath,
				"stdin", cfg.Options.Stdin,
				"model", cfg.Model,
				"backend", cfg.Backend)

			// 3. パイプライン実行
			if _, err := p.Run(cmd.Context()); err != nil {
				if errors.Is(err, pipeline.ErrNoInput) {
					_ = cmd.Help()
				}
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Prompt, "prompt", "p", "", "JSON の代わりに使う自由記述のプロンプト")
	flags.StringVarP(&opts.OutputPath, "output", "o", "", "出力ファイルのパス（拡張子がなければ画像形式から付けます）")
	flags.StringVarP(&model, "model", "m", domain.DefaultModelAlias,
		fmt.Sprintf("モデルのエイリアス (%s) またはモデルID", strings.Join(domain.ModelAliases(), ", ")))
	flags.BoolVar(&opts.ShowPrompt, "show-prompt", false, "送信するプロンプトを表示します")
	flags.BoolVar(&opts.Stdin, "stdin", false, "標準入力から JSON 仕様を読み込みます")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "プロンプトを表示するだけで API を呼び出しません")
	flags.StringVar(&backend, "backend", config.BackendREST, "通信方式 (rest または sdk)")
	flags.IntVar(&opts.JPEGQuality, "jpeg-quality", 0, "指定すると保存前に JPEG へ再エンコードします (1-100)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出力します")

	return cmd
}

// Execute はルートコマンドを実行し、失敗時はエラーを表示して終了コード 1 で終了します。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(cmd.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// printError はエラーの種類に応じた案内を表示します。
func printError(w io.Writer, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		fmt.Fprintf(w, "%v!\n\n", err)
		fmt.Fprintln(w, "Setup options:")
		fmt.Fprintln(w, "  1. export GEMINI_API_KEY=your_key")
		fmt.Fprintln(w, "  2. Create .env file with GEMINI_API_KEY=your_key")
		fmt.Fprintln(w, "     Supported paths: ./.env, ~/.env, ~/.claude/.env")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Get key: %s\n", apiKeyURL)
		return
	case errors.Is(err, pipeline.ErrNoInput):
		return
	}

	if dump, ok := domain.ResponseDump(err); ok {
		fmt.Fprintf(w, "Full response:\n%s\n", dump)
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	switch {
	case domain.IsRateLimited(err):
		fmt.Fprintln(w, "Hint: rate limit or quota exceeded, wait and retry later")
	case domain.IsAuth(err):
		fmt.Fprintln(w, "Hint: check that GEMINI_API_KEY is valid")
	}
}
