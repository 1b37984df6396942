package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential はどの候補からも API キーが見つからなかったことを示します。
	ErrMissingCredential = errors.New("GEMINI_API_KEY not found")
	// ErrSpecNotFound は指定された仕様ファイルが存在しないことを示します。
	ErrSpecNotFound = errors.New("specification file not found")
	// ErrMalformedSpec は仕様が JSON として解釈できないことを示します。
	ErrMalformedSpec = errors.New("malformed specification")
)

// TransportError はステータス行を受信する前に発生した通信エラーです（DNS、接続拒否、タイムアウト等）。
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return "network error: " + e.Reason
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError は API が 2xx 以外のステータスを返したことを示します。
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// MalformedResponseError は成功ステータスなのに期待した構造を持たない応答です。
type MalformedResponseError struct {
	Reason string
	Dump   string // 切り詰め済みの応答全体
}

func (e *MalformedResponseError) Error() string {
	return "unexpected response: " + e.Reason
}

// NoImageFoundError は応答は正しい形式だが画像パートが含まれていなかったことを示します。
type NoImageFoundError struct {
	Reason string // FinishReason 等、判明している場合のみ
	Texts  []string
	Dump   string
}

func (e *NoImageFoundError) Error() string {
	msg := "no image found in response, model may not support image generation"
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// ResponseDump は応答系エラーに添付されたデバッグ用ダンプを取り出します。
func ResponseDump(err error) (string, bool) {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Dump, malformed.Dump != ""
	}
	var noImage *NoImageFoundError
	if errors.As(err, &noImage) {
		return noImage.Dump, noImage.Dump != ""
	}
	return "", false
}

func IsRateLimited(err error) bool {
	var e *RemoteError
	return errors.As(err, &e) && e.StatusCode == http.StatusTooManyRequests
}

func IsAuth(err error) bool {
	var e *RemoteError
	return errors.As(err, &e) && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
