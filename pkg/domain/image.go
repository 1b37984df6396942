package domain

// ImageGenerationRequest は単一の画像生成要求です。
// 認証情報は環境変数を経由せず、リクエストの値として明示的に渡します。
type ImageGenerationRequest struct {
	Prompt string
	APIKey string
	Model  string // エイリアス (flash, pro, imagen) またはモデルIDそのもの
}

// ImageResponse は生成された画像データとそのメタデータです。
type ImageResponse struct {
	Data     []byte
	MimeType string
	Model    string   // 実際にリクエストしたモデルID
	Texts    []string // 画像と一緒に返された説明テキスト（表示用に切り詰め済み）
}
