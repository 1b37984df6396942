package pipeline

import (
	"context"

	"github.com/ilyakorolev/nano-banana-ru/pkg/credential"
	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/imgutil"
)

type mockResolver struct {
	cred  credential.Credential
	err   error
	calls int
}

func (m *mockResolver) Resolve() (credential.Credential, error) {
	m.calls++
	return m.cred, m.err
}

type mockGenerator struct {
	generateFunc func(req domain.ImageGenerationRequest) (*domain.ImageResponse, error)
	lastReq      domain.ImageGenerationRequest
	calls        int
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.ImageGenerationRequest) (*domain.ImageResponse, error) {
	m.calls++
	m.lastReq = req
	if m.generateFunc != nil {
		return m.generateFunc(req)
	}
	return &domain.ImageResponse{Data: []byte("\x89PNG\r\n\x1a\nbody"), MimeType: "image/png"}, nil
}

type mockPersister struct {
	err      error
	lastPath string
	lastData []byte
	calls    int
}

func (m *mockPersister) Persist(data []byte, path string) (*imgutil.Result, error) {
	m.calls++
	m.lastPath = path
	m.lastData = data
	if m.err != nil {
		return nil, m.err
	}
	return &imgutil.Result{Path: path + ".png", Bytes: len(data), Format: imgutil.DetectFormat(data)}, nil
}
