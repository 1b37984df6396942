package generator

import (
	"net/http"
)

// mockHTTPDoer は HTTPDoer のテスト用モックなのだ。
type mockHTTPDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
	calls  int
}

func (m *mockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	return m.doFunc(req)
}

// errReader は読み込みの途中で失敗する本文なのだ。
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
func (r errReader) Close() error             { return nil }
