package domain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/tidwall/gjson"
)

// SchemaKind は仕様のスキーマ種別を表す判別子です。
type SchemaKind int

const (
	SchemaUnknown SchemaKind = iota
	SchemaMarketingImage
	SchemaPresentationSlide
	SchemaIconSet
	SchemaIllustration
)

var schemaKinds = map[string]SchemaKind{
	"marketing_image":    SchemaMarketingImage,
	"presentation_slide": SchemaPresentationSlide,
	"icon_set":           SchemaIconSet,
	"illustration":       SchemaIllustration,
}

// SchemaType は仕様のトップレベルキーから決まるスキーマ種別です。
// 未知の種別でも Name には元のキーがそのまま残ります。
type SchemaType struct {
	Kind SchemaKind
	Name string
}

// ParseSchemaType はトップレベルキー名から SchemaType を作ります。
func ParseSchemaType(name string) SchemaType {
	return SchemaType{Kind: schemaKinds[name], Name: name}
}

// Specification は構造化された画像仕様です。
// 元の JSON をキー順のまま保持し、フィールドはパス指定で参照します。
// トップレベルのキーは 1 つである前提で、複数ある場合は先頭のキーだけが使われます。
type Specification struct {
	raw    []byte
	schema SchemaType
	fields gjson.Result
}

// ParseSpecification は JSON バイト列から Specification を作ります。
func ParseSpecification(data []byte) (*Specification, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedSpec)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top-level value must be an object", ErrMalformedSpec)
	}

	var (
		name   string
		fields gjson.Result
		found  bool
	)
	doc.ForEach(func(key, value gjson.Result) bool {
		name, fields, found = key.String(), value, true
		return false
	})
	if !found {
		return nil, fmt.Errorf("%w: specification has no schema type", ErrMalformedSpec)
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Specification{
		raw:    raw,
		schema: ParseSchemaType(name),
		fields: fields,
	}, nil
}

// ReadSpecification は r から仕様を読み込みます（標準入力用）。
func ReadSpecification(r io.Reader) (*Specification, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("仕様の読み込みに失敗しました: %w", err)
	}
	return ParseSpecification(data)
}

// LoadSpecification は path の仕様ファイルを読み込みます。
func LoadSpecification(path string) (*Specification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSpecNotFound, path)
		}
		return nil, fmt.Errorf("仕様ファイルの読み込みに失敗しました: %w", err)
	}
	spec, err := ParseSpecification(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Schema はスキーマ種別を返します。
func (s *Specification) Schema() SchemaType { return s.schema }

// Raw は元の JSON ドキュメントを返します。
func (s *Specification) Raw() []byte { return s.raw }

// Field はスキーマ配下のフィールドを gjson パスで参照します。
// スキーマ直下の値がオブジェクトでない場合、どのパスも存在しない扱いになります。
func (s *Specification) Field(path string) gjson.Result {
	if !s.fields.IsObject() {
		return gjson.Result{}
	}
	return s.fields.Get(path)
}
