package domain

import "sort"

const (
	ModelFlash  = "gemini-2.5-flash-preview-05-20" // Nano Banana（高速）
	ModelPro    = "gemini-3-pro-image-preview"     // Nano Banana Pro（高品質）
	ModelImagen = "imagen-3.0-generate-002"

	DefaultModelAlias = "pro"
)

var modelAliases = map[string]string{
	"flash":  ModelFlash,
	"pro":    ModelPro,
	"imagen": ModelImagen,
}

// ResolveModel はモデルエイリアスを上流のモデルIDに変換します。
// 未知の値はモデルIDとしてそのまま返すため、新しいモデルも指定できます。
func ResolveModel(alias string) string {
	if alias == "" {
		alias = DefaultModelAlias
	}
	if model, ok := modelAliases[alias]; ok {
		return model
	}
	return alias
}

// ModelAliases は利用可能なエイリアスを名前順で返します。
func ModelAliases() []string {
	names := make([]string, 0, len(modelAliases))
	for name := range modelAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
