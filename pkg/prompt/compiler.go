package prompt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ilyakorolev/nano-banana-ru/pkg/domain"
	"github.com/ilyakorolev/nano-banana-ru/pkg/utils"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	headerLine    = "Generate a high-quality image based on this detailed specification."
	specOpenLine  = "--- FULL JSON SPECIFICATION (follow exactly) ---"
	specCloseLine = "--- END SPECIFICATION ---"
	closingLine   = "Generate this image with professional quality. Follow all colors, positions, and styling from the specification."

	maxIconNames = 5
)

// embedOptions は仕様 JSON の埋め込み形式です。
// Width 0 で配列も1要素1行に展開し、キー順は元のドキュメントのまま保ちます。
var embedOptions = &pretty.Options{Width: 0, Prefix: "", Indent: "  ", SortKeys: false}

// Prompt は API に送る最終的なプロンプトです。行の順序は入力に対して常に同じです。
type Prompt struct {
	lines []string
}

// FromText は自由記述のプロンプトを加工せずにそのまま Prompt にします。
func FromText(text string) Prompt {
	return Prompt{lines: []string{text}}
}

// String は API に送るテキストを返します。
func (p Prompt) String() string {
	return strings.Join(p.lines, "\n")
}

// Lines は要約行を含むすべての行を返します。埋め込み JSON は1要素にまとまっています。
func (p Prompt) Lines() []string {
	return append([]string(nil), p.lines...)
}

// Preview は表示用に1行へまとめて切り詰めたプロンプトを返します。
func (p Prompt) Preview(limit int) string {
	return utils.Truncate(strings.Join(strings.Fields(p.String()), " "), limit)
}

// EmbeddedSpec は区切り行に挟まれた仕様 JSON を取り出します。
// JSON の文字列は改行を含められないため、行頭の区切り行はプロンプト側のものに限られます。
func (p Prompt) EmbeddedSpec() ([]byte, bool) {
	text := p.String()
	open := "\n" + specOpenLine + "\n"
	start := strings.LastIndex(text, open)
	if start < 0 {
		return nil, false
	}
	body := text[start+len(open):]
	end := strings.Index(body, "\n"+specCloseLine)
	if end < 0 {
		return nil, false
	}
	return []byte(body[:end]), true
}

// Compile は構造化仕様を、要約行と原文 JSON からなるプロンプトに変換します。
// 要約行は人間向けの補足で、正となる指示は埋め込んだ JSON 全体です。
func Compile(spec *domain.Specification) Prompt {
	schema := spec.Schema()
	lines := []string{
		headerLine,
		"Image type: " + titleCase(schema.Name),
	}

	lines = append(lines, metaLines(spec)...)

	switch schema.Kind {
	case domain.SchemaMarketingImage:
		lines = append(lines, marketingImageLines(spec)...)
	case domain.SchemaPresentationSlide:
		lines = append(lines, presentationSlideLines(spec)...)
	case domain.SchemaIconSet:
		lines = append(lines, iconSetLines(spec)...)
	case domain.SchemaIllustration:
		lines = append(lines, illustrationLines(spec)...)
	}

	lines = append(lines,
		"",
		specOpenLine,
		string(bytes.TrimRight(pretty.PrettyOptions(spec.Raw(), embedOptions), "\n")),
		specCloseLine,
		"",
		closingLine,
	)
	return Prompt{lines: lines}
}

func titleCase(schemaName string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(schemaName, "_", " "))
}

func metaLines(spec *domain.Specification) []string {
	meta := spec.Field("meta")
	if !meta.Exists() {
		return nil
	}
	var lines []string
	if title := meta.Get("title"); title.Exists() {
		lines = append(lines, "Title: "+title.String())
	}
	if desc := meta.Get("description"); desc.Exists() {
		lines = append(lines, "Description: "+desc.String())
	}
	return lines
}

func marketingImageLines(spec *domain.Specification) []string {
	var lines []string
	if subject := spec.Field("subject"); subject.Exists() {
		lines = append(lines, fmt.Sprintf("Subject: %s - %s", subject.Get("name").String(), subject.Get("description").String()))
	}
	if env := spec.Field("environment"); env.Exists() {
		if atmosphere := env.Get("atmosphere"); atmosphere.Exists() {
			lines = append(lines, "Mood: "+atmosphere.Get("mood").String())
		}
		if background := env.Get("background"); background.Exists() {
			lines = append(lines, "Background color: "+background.Get("color").String())
		}
	}
	if light := spec.Field("lighting"); light.Exists() {
		lines = append(lines, fmt.Sprintf("Lighting: %s key light, %s temperature",
			light.Get("key_light_direction").String(),
			valueOr(light.Get("color_temperature"), "neutral")))
	}
	if colors := spec.Field("brand.primary_colors"); colors.Exists() {
		lines = append(lines, "Brand colors: "+joinValues(colors.Array()))
	}
	return lines
}

func presentationSlideLines(spec *domain.Specification) []string {
	var lines []string
	if headline := spec.Field("content.headline"); headline.Exists() {
		lines = append(lines, "Headline: "+headline.Get("text").String())
	}
	if layout := spec.Field("layout"); layout.Exists() {
		lines = append(lines, fmt.Sprintf("Layout: %s (%s)",
			layout.Get("type").String(),
			valueOr(layout.Get("aspect_ratio"), "16:9")))
	}
	return lines
}

func iconSetLines(spec *domain.Specification) []string {
	var lines []string
	if specs := spec.Field("specifications"); specs.Exists() {
		lines = append(lines, fmt.Sprintf("Icon style: %s, %spx grid",
			valueOr(specs.Get("style"), "outlined"),
			valueOr(specs.Get("grid_size"), "24")))
	}
	if icons := spec.Field("icons"); icons.Exists() {
		all := icons.Array()
		if len(all) > maxIconNames {
			all = all[:maxIconNames]
		}
		names := make([]gjson.Result, 0, len(all))
		for _, icon := range all {
			names = append(names, icon.Get("name"))
		}
		lines = append(lines, "Icons to create: "+joinValues(names))
	}
	return lines
}

func illustrationLines(spec *domain.Specification) []string {
	var lines []string
	if style := spec.Field("style"); style.Exists() {
		lines = append(lines, "Style: "+style.Get("type").String())
	}
	if scene := spec.Field("scene"); scene.Exists() {
		lines = append(lines,
			"Scene: "+scene.Get("description").String(),
			"Mood: "+scene.Get("mood").String())
	}
	return lines
}

// valueOr はキーが存在しない場合だけ def を返します。
func valueOr(r gjson.Result, def string) string {
	if !r.Exists() {
		return def
	}
	return r.String()
}

func joinValues(values []gjson.Result) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}
