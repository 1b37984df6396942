package generator

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/utils"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

const (
	textPreviewLimit = 200
	dumpLimit        = 2000
)

// Extract は応答エンベロープから最初の画像パートを取り出します。
// 候補を順に、各候補のパートを順に走査し、mimeType が image/ で始まる最初の inlineData を返します。
// テキストパートは記録するだけで走査は止めません。content を持たない候補は読み飛ばします。
func Extract(envelope []byte) (*domain.ImageResponse, error) {
	if !gjson.ValidBytes(envelope) {
		return nil, &domain.MalformedResponseError{Reason: "response is not valid JSON", Dump: utils.Truncate(string(envelope), dumpLimit)}
	}

	candidates := gjson.GetBytes(envelope, "candidates")
	if !candidates.Exists() {
		return nil, &domain.MalformedResponseError{Reason: "missing candidates", Dump: dumpEnvelope(envelope)}
	}

	var texts []string
	for i, candidate := range candidates.Array() {
		content := candidate.Get("content")
		if !content.Exists() {
			slog.Debug("content を持たない候補を読み飛ばします", "candidate", i, "finish_reason", candidate.Get("finishReason").String())
			continue
		}

		for _, part := range content.Get("parts").Array() {
			if inline := part.Get("inlineData"); inline.Exists() {
				mimeType := inline.Get("mimeType").String()
				if strings.HasPrefix(mimeType, "image/") {
					data, err := base64.StdEncoding.DecodeString(inline.Get("data").String())
					if err != nil {
						return nil, &domain.MalformedResponseError{
							Reason: fmt.Sprintf("candidate %d: invalid base64 image data: %v", i, err),
							Dump:   dumpEnvelope(envelope),
						}
					}
					return &domain.ImageResponse{Data: data, MimeType: mimeType, Texts: texts}, nil
				}
			}
			if text := part.Get("text"); text.Exists() {
				preview := utils.Truncate(text.String(), textPreviewLimit)
				slog.Info("モデルからのテキスト応答", "text", preview)
				texts = append(texts, preview)
			}
		}
	}

	return nil, &domain.NoImageFoundError{Texts: texts, Dump: dumpEnvelope(envelope)}
}

// dumpEnvelope はデバッグ表示用に整形して切り詰めた応答を返します。
func dumpEnvelope(envelope []byte) string {
	return utils.Truncate(string(bytes.TrimSpace(pretty.Pretty(envelope))), dumpLimit)
}
