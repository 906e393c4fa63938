package schema

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

// Languages lists the binding targets Render supports.
var Languages = []string{"go", "js", "ts", "rs"}

var templates = map[string]*template.Template{
	"js": template.Must(template.New("js").Parse(`module.exports = Object.freeze({

{{range .Constants}}{{.Name}} : {{.Value}},
{{end}}
{{range .Enums}}{{.Name}}: {
{{range .Members}}    {{.Name}}: {{.Value}},
{{end}}},

{{end}}});
`)),
	"ts": template.Must(template.New("ts").Parse(`{{range .Constants}}export const {{.Name}}: number = {{.Value}}
{{end}}
{{range .Enums}}export enum {{.Name}} {
{{range .Members}}    {{.Name}} = {{.Value}},
{{end}}}

{{end}}`)),
	"rs": template.Must(template.New("rs").Parse(`#[allow(non_camel_case_types)]
#[allow(dead_code)]
pub mod msg {

{{range .Constants}}pub const {{.Name}}: usize = {{.Value}};
{{end}}
{{range .Enums}}#[derive(Primitive)]
pub enum {{.Name}} {
{{range .Members}}    {{.Name}} = {{.Value}},
{{end}}}

{{end}}}
`)),
	"go": template.Must(template.New("go").Funcs(template.FuncMap{"camel": camel}).Parse(`// Code generated by msggen. DO NOT EDIT.

package {{.Package}}

const (
{{range .Constants}}	{{camel .Name}} = {{.Value}}
{{end}})
{{range $e := .Enums}}
type {{$e.Name}} uint16

const (
{{range $e.Members}}	{{$e.Name}}{{camel .Name}} {{$e.Name}} = {{.Value}}
{{end}})
{{end}}`)),
}

type renderData struct {
	*Schema
	Package string
}

// Render writes the bindings for lang. pkg is only used by the Go target.
func (s *Schema) Render(w io.Writer, lang, pkg string) error {
	tmpl, ok := templates[lang]
	if !ok {
		return fmt.Errorf("unsupported language %q (use %s)", lang, strings.Join(Languages, "/"))
	}
	if pkg == "" {
		pkg = "msgids"
	}
	return tmpl.Execute(w, renderData{Schema: s, Package: pkg})
}

// camel turns SCREAMING_SNAKE names into Go identifiers, keeping ID upper
// case: ID_OFFSET -> IDOffset, D_INPUT -> DInput.
func camel(name string) string {
	var sb strings.Builder
	for _, part := range strings.Split(strings.ToLower(name), "_") {
		if part == "" {
			continue
		}
		if part == "id" {
			sb.WriteString("ID")
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return sb.String()
}
