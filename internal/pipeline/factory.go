package pipeline

import (
	"fmt"
	"strings"

	"github.com/ilyakorolev/nano-banana-ru/internal/config"
	"github.com/ilyakorolev/nano-banana-ru/pkg/adapters"
	"github.com/ilyakorolev/nano-banana-ru/pkg/credential"
	"github.com/ilyakorolev/nano-banana-ru/pkg/generator"
	"github.com/ilyakorolev/nano-banana-ru/pkg/imgutil"
)

// restModelsPath は REST エンドポイントのうち SDK が自分で付け足す部分です。
const restModelsPath = "/v1beta/models"

// NewGenerator は設定されたバックエンドの ImageGenerator を作ります。
func NewGenerator(cfg config.Config) (generator.ImageGenerator, error) {
	switch cfg.Backend {
	case config.BackendREST, "":
		return generator.NewRESTClient(
			generator.WithEndpoint(cfg.Endpoint),
			generator.WithTimeout(cfg.Timeout),
		), nil
	case config.BackendSDK:
		gen, err := adapters.NewGeminiImageGenerator(
			adapters.NewGeminiImageCore(),
			adapters.NewGenAIClientFactory(cfg.Timeout, sdkBaseURL(cfg.Endpoint)),
		)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// sdkBaseURL は REST 用のエンドポイントを SDK の BaseURL に変換します。既定値なら空です。
func sdkBaseURL(endpoint string) string {
	if endpoint == "" || endpoint == generator.DefaultEndpoint {
		return ""
	}
	return strings.TrimSuffix(strings.TrimRight(endpoint, "/"), restModelsPath)
}

func NewResolver(cfg config.Config) *credential.Resolver {
	return credential.NewResolver(credential.WithEnvKey(cfg.APIKeyEnv))
}

func NewPersister(cfg config.Config) *imgutil.Persister {
	return imgutil.NewPersister(imgutil.WithJPEGQuality(cfg.Options.JPEGQuality))
}
