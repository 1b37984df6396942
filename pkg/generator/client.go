package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultTimeout は接続から本文受信までを含む1回のやり取り全体の上限です。
	DefaultTimeout = 120 * time.Second
)

var responseModalities = []string{"TEXT", "IMAGE"}

// RESTClient は Gemini の generateContent エンドポイントを直接呼び出すクライアントです。
type RESTClient struct {
	httpClient HTTPDoer
	endpoint   string
}

// Option は RESTClient の設定を変更します。
type Option func(*RESTClient)

func WithEndpoint(endpoint string) Option {
	return func(c *RESTClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout はタイムアウト付きの http.Client を使うようにします。
func WithTimeout(d time.Duration) Option {
	return func(c *RESTClient) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithHTTPClient は HTTP クライアントを差し替えます。タイムアウトは呼び出し側の責任です。
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *RESTClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewRESTClient(opts ...Option) *RESTClient {
	c := &RESTClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate はリクエストを送信し、応答から最初の画像を取り出して返します。
func (c *RESTClient) Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageResponse, error) {
	model := domain.ResolveModel(req.Model)

	envelope, err := c.FetchEnvelope(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := Extract(envelope)
	if err != nil {
		return nil, err
	}
	resp.Model = model
	return resp, nil
}

// FetchEnvelope は generateContent を1回だけ呼び出し、成功時の応答本文を返します。
// 2xx 以外は *domain.RemoteError、ステータス受信前の失敗は *domain.TransportError です。
func (c *RESTClient) FetchEnvelope(ctx context.Context, req domain.ImageGenerationRequest) ([]byte, error) {
	if req.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}
	model := domain.ResolveModel(req.Model)

	body, err := buildRequestBody(req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの作成に失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?%s",
		strings.TrimRight(c.endpoint, "/"), model, url.Values{"key": {req.APIKey}}.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.InfoContext(ctx, "画像生成をリクエストします", "model", model, "prompt_bytes", len(req.Prompt))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RemoteError{StatusCode: resp.StatusCode, Message: remoteMessage(data)}
	}
	return data, nil
}

func buildRequestBody(prompt string) ([]byte, error) {
	body, err := sjson.SetBytes(nil, "contents.0.parts.0.text", prompt)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "generationConfig.responseModalities", responseModalities)
}

// remoteMessage はエラー本文の error.message を取り出します。JSON でなければ本文そのままです。
func remoteMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
			return msg.String()
		}
	}
	return string(body)
}

// newTransportError は *url.Error を剥がして理由だけを残します。
// URL にはクエリパラメータの API キーが含まれるため、メッセージに出さないようにします。
func newTransportError(err error) *domain.TransportError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &domain.TransportError{Reason: err.Error(), Err: err}
}
