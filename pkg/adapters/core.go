package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/utils"

	"github.com/tidwall/pretty"
	"google.golang.org/genai"
)

const (
	textPreviewLimit = 200
	dumpLimit        = 2000
)

// ResponseParser は SDK の応答からドメインの画像応答を取り出すインターフェースです。
type ResponseParser interface {
	ParseToResponse(resp *genai.GenerateContentResponse) (*domain.ImageResponse, error)
}

// GeminiImageCore は SDK 応答の解析ロジックを保持するコンポーネントです。
type GeminiImageCore struct{}

func NewGeminiImageCore() *GeminiImageCore {
	return &GeminiImageCore{}
}

// ParseToResponse は Gemini のレスポンスを解析して domain.ImageResponse に変換します。
// 全ての候補を順に走査し、MIMEタイプが image/ で始まる最初のインラインデータを返します。
func (c *GeminiImageCore) ParseToResponse(resp *genai.GenerateContentResponse) (*domain.ImageResponse, error) {
	if resp == nil {
		return nil, &domain.MalformedResponseError{Reason: "empty response"}
	}
	if len(resp.Candidates) == 0 {
		reason := "missing candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason += fmt.Sprintf(" (BlockReason: %s)", resp.PromptFeedback.BlockReason)
		}
		return nil, &domain.MalformedResponseError{Reason: reason, Dump: dumpResponse(resp)}
	}

	var texts []string
	var finishReason genai.FinishReason
	for i, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if candidate.Content == nil {
			slog.Debug("content を持たない候補を読み飛ばします", "candidate", i, "finish_reason", candidate.FinishReason)
			if finishReason == "" && isAbnormal(candidate.FinishReason) {
				finishReason = candidate.FinishReason
			}
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
				return &domain.ImageResponse{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
					Texts:    texts,
				}, nil
			}
			if part.Text != "" {
				preview := utils.Truncate(part.Text, textPreviewLimit)
				slog.Info("モデルからのテキスト応答", "text", preview)
				texts = append(texts, preview)
			}
		}

		// 安全フィルター等によるブロックの確認
		if finishReason == "" && isAbnormal(candidate.FinishReason) {
			finishReason = candidate.FinishReason
		}
	}

	noImage := &domain.NoImageFoundError{Texts: texts, Dump: dumpResponse(resp)}
	if finishReason != "" {
		noImage.Reason = "FinishReason: " + string(finishReason)
	}
	return nil, noImage
}

func isAbnormal(reason genai.FinishReason) bool {
	return reason != "" && reason != genai.FinishReasonUnspecified && reason != genai.FinishReasonStop
}

// dumpResponse はデバッグ表示用に応答を JSON に戻して整形します。
func dumpResponse(resp *genai.GenerateContentResponse) string {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("%+v", resp)
	}
	return utils.Truncate(string(bytes.TrimSpace(pretty.Pretty(raw))), dumpLimit)
}
