package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"

	"google.golang.org/genai"
)

// ContentGenerator は genai.Models のうち画像生成で使う部分です。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory は API キーごとに ContentGenerator を作ります。
// キーはリクエストごとに渡されるため、クライアントも呼び出し時に作ります。
type ClientFactory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// NewGenAIClientFactory は genai SDK のクライアントを作るファクトリを返します。
// baseURL が空なら SDK の既定のエンドポイントを使います。
func NewGenAIClientFactory(timeout time.Duration, baseURL string) ClientFactory {
	return func(ctx context.Context, apiKey string) (ContentGenerator, error) {
		httpOpts := genai.HTTPOptions{BaseURL: baseURL}
		if timeout > 0 {
			httpOpts.Timeout = &timeout
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: httpOpts,
		})
		if err != nil {
			return nil, fmt.Errorf("Geminiクライアントの作成に失敗しました: %w", err)
		}
		return client.Models, nil
	}
}

// GeminiImageGenerator は genai SDK 経由で画像を生成するアダプター層です。
type GeminiImageGenerator struct {
	imgCore   ResponseParser
	newClient ClientFactory
}

// NewGeminiImageGenerator は応答解析とクライアント生成を注入して初期化します。
func NewGeminiImageGenerator(core ResponseParser, factory ClientFactory) (*GeminiImageGenerator, error) {
	if core == nil {
		return nil, errors.New("response parser is required")
	}
	if factory == nil {
		return nil, errors.New("client factory is required")
	}
	return &GeminiImageGenerator{
		imgCore:   core,
		newClient: factory,
	}, nil
}

// Generate はドメインのリクエストを SDK の形式に変換して1回だけ実行します。
func (a *GeminiImageGenerator) Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageResponse, error) {
	if req.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}
	model := domain.ResolveModel(req.Model)

	client, err := a.newClient(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
	}

	slog.InfoContext(ctx, "SDK経由で画像生成をリクエストします", "model", model, "prompt_bytes", len(req.Prompt))

	resp, err := client.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, mapSDKError(err)
	}

	out, err := a.imgCore.ParseToResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = model
	return out, nil
}

// mapSDKError は SDK のエラーをドメインのエラー型に揃えます。
func mapSDKError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.RemoteError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &domain.RemoteError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return &domain.TransportError{Reason: err.Error(), Err: err}
}
