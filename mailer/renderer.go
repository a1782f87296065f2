package mailer

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer turns template names and bindings into HTML bodies.
type Renderer struct {
	engine *django.Engine
}

// NewRenderer loads the bundled templates.
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	return NewRendererFS(sub)
}

// NewRendererFS loads every .html template found in fsys.
func NewRendererFS(fsys fs.FS) (*Renderer, error) {
	engine := django.NewFileSystem(http.FS(fsys), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}
	return &Renderer{engine: engine}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}
