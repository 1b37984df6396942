package generator

import (
	"context"
	"net/http"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
)

// ImageGenerator はプロンプトから画像を1回だけ生成する窓口です。
// 実装はリトライを行わず、失敗は domain パッケージのエラー型で返します。
type ImageGenerator interface {
	Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageResponse, error)
}

// HTTPDoer は HTTP リクエストを実行するためのインターフェースです。*http.Client が満たします。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
