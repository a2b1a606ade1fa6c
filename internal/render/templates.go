package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"ifgstack/internal/services"
)

//go:embed templates
var embedded embed.FS

// Template file names, relative to the template directory.
const (
	ExampleRSCTemplate  = "example.rsc.tmpl"
	PrepDataTemplate    = "prepdataxml.py.tmpl"
	PrepSBASTemplate    = "prepsbasxml.py.tmpl"
	UserFnSource        = "userfn.py"
	embeddedTemplateDir = "templates"
)

// TemplateSet holds the parsed templates and the user function source.
// It is loaded once and shared read-only.
type TemplateSet struct {
	exampleRSC *template.Template
	prepData   *template.Template
	prepSBAS   *template.Template
	userFn     []byte
}

var funcs = template.FuncMap{
	"pylist": pyList,
}

// LoadTemplates parses the embedded templates, replacing any that exist in
// overrideDir. An empty overrideDir uses the embedded set only.
func LoadTemplates(overrideDir string) (*TemplateSet, error) {
	read := func(name string) ([]byte, error) {
		if overrideDir != "" {
			data, err := os.ReadFile(filepath.Join(overrideDir, name))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
		return embedded.ReadFile(embeddedTemplateDir + "/" + name)
	}
	parse := func(name string) (*template.Template, error) {
		data, err := read(name)
		if err != nil {
			return nil, services.Wrap(services.ErrConfig, "render", "load template", name, err)
		}
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, services.Wrap(services.ErrConfig, "render", "parse template", name, err)
		}
		return tmpl, nil
	}

	set := &TemplateSet{}
	var err error
	if set.exampleRSC, err = parse(ExampleRSCTemplate); err != nil {
		return nil, err
	}
	if set.prepData, err = parse(PrepDataTemplate); err != nil {
		return nil, err
	}
	if set.prepSBAS, err = parse(PrepSBASTemplate); err != nil {
		return nil, err
	}
	if set.userFn, err = read(UserFnSource); err != nil {
		return nil, services.Wrap(services.ErrConfig, "render", "load template", UserFnSource, err)
	}
	return set, nil
}

// pyList formats ints the way a Python list literal prints.
func pyList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
