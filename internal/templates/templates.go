// Package templates loads form templates written in CUE.
//
// A template file declares one or more templates under the top-level
// "template" field:
//
//	template: feedback: {
//		title: "Feedback"
//		questions: [{id: "rating", type: "rating", text: "How did we do?"}]
//	}
//
// Every template is checked against the #Template definition in schema.cue
// before it is decoded into form questions.
package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/formdoc/internal/form"
)

//go:embed schema.cue
var schemaCUE string

//go:embed builtin/*.cue
var builtinFS embed.FS

// Template is a reusable starting point for a new form.
type Template struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Questions   []form.Question `json:"questions"`
}

// FileError reports a template file that failed to load.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Registry holds the loaded templates. It is safe for concurrent use; a
// reload swaps the whole set at once.
type Registry struct {
	dir string

	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry returns a registry with the built-in templates and, when dir
// is non-empty, the templates found in dir. Templates in dir override
// built-ins of the same name.
func NewRegistry(dir string) (*Registry, []error) {
	r := &Registry{dir: dir}
	errs := r.Reload()
	return r, errs
}

// Reload re-reads the built-ins and the template directory. Files that fail
// to load are reported and skipped; the rest are still registered.
func (r *Registry) Reload() []error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Template"))
	if err := schema.Err(); err != nil {
		return []error{fmt.Errorf("compile template schema: %w", err)}
	}

	loaded := map[string]Template{}
	var errs []error

	builtins, _ := fs.Glob(builtinFS, "builtin/*.cue")
	for _, name := range builtins {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			errs = append(errs, &FileError{File: name, Err: err})
			continue
		}
		if err := decodeFile(ctx, schema, name, data, loaded); err != nil {
			errs = append(errs, err)
		}
	}

	if r.dir != "" {
		files, err := FindCUEFiles(r.dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan template directory: %w", err))
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, &FileError{File: path, Err: err})
				continue
			}
			if err := decodeFile(ctx, schema, path, data, loaded); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()
	return errs
}

// Get returns the named template.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindCUEFiles returns the .cue files under dir.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// decodeFile compiles one file and adds its templates to into. Nothing is
// added when any template in the file is invalid.
func decodeFile(ctx *cue.Context, schema cue.Value, filename string, data []byte, into map[string]Template) error {
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return &FileError{File: filename, Err: err}
	}

	root := v.LookupPath(cue.ParsePath("template"))
	if !root.Exists() {
		return nil
	}
	iter, err := root.Fields()
	if err != nil {
		return &FileError{File: filename, Err: err}
	}

	found := map[string]Template{}
	for iter.Next() {
		name := iter.Label()
		t, err := decodeTemplate(schema, name, iter.Value())
		if err != nil {
			return &FileError{File: filename, Err: fmt.Errorf("template %s: %w", name, err)}
		}
		found[name] = t
	}

	for name, t := range found {
		into[name] = t
	}
	return nil
}

func decodeTemplate(schema cue.Value, name string, v cue.Value) (Template, error) {
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Template{}, err
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return Template{}, err
	}

	var t Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return Template{}, err
	}
	t.Name = name
	if t.Questions == nil {
		t.Questions = []form.Question{}
	}

	doc := &form.Document{Questions: t.Questions}
	if warnings := form.CheckDefinition(doc); len(warnings) > 0 {
		return Template{}, fmt.Errorf("%s", strings.Join(warnings, "; "))
	}
	return t, nil
}
