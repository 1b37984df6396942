package imgutil

import "bytes"

// Format は先頭バイトから判定した画像形式です。値はそのまま拡張子に使います。
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatWEBP Format = "webp"
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegSignature = []byte{0xff, 0xd8}
	riffTag       = []byte("RIFF")
	webpTag       = []byte("WEBP")
)

// DetectFormat はマジックバイトだけで形式を判定します。判定できない場合は PNG です。
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG
	case bytes.HasPrefix(data, jpegSignature):
		return FormatJPEG
	case len(data) >= 12 && bytes.Equal(data[0:4], riffTag) && bytes.Equal(data[8:12], webpTag):
		return FormatWEBP
	default:
		return FormatPNG
	}
}

// Ext はドット付きの拡張子を返します。
func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}
