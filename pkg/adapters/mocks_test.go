package adapters

import (
	"context"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"google.golang.org/genai"
)

// mockResponseParser は ResponseParser インターフェースのテスト用モックなのだ。
type mockResponseParser struct {
	parseFunc func(resp *genai.GenerateContentResponse) (*domain.ImageResponse, error)
}

func (m *mockResponseParser) ParseToResponse(resp *genai.GenerateContentResponse) (*domain.ImageResponse, error) {
	if m.parseFunc != nil {
		return m.parseFunc(resp)
	}
	return nil, nil
}

// mockContentGenerator は genai.Models の代わりになるモックなのだ。
type mockContentGenerator struct {
	generateFunc func(model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(model, contents, config)
	}
	return nil, nil
}

// factoryFor は決まったモックを返すファクトリを作るのだ。
func factoryFor(gen ContentGenerator, gotKey *string) ClientFactory {
	return func(ctx context.Context, apiKey string) (ContentGenerator, error) {
		if gotKey != nil {
			*gotKey = apiKey
		}
		return gen, nil
	}
}
