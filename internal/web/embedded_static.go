package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var EmbeddedStaticFS embed.FS

//go:embed templates/*.html
var EmbeddedTemplatesFS embed.FS

const baseTemplate = "base.html"

// templateSet holds every embedded page parsed together with base.html
type templateSet struct {
	funcs template.FuncMap
	pages map[string]*template.Template
}

func loadTemplates(funcs template.FuncMap) (*templateSet, error) {
	names, err := fs.Glob(EmbeddedTemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	set := &templateSet{funcs: funcs, pages: make(map[string]*template.Template)}
	for _, name := range names {
		page := path.Base(name)
		if page == baseTemplate {
			continue
		}
		tmpl, err := template.New(baseTemplate).Funcs(funcs).ParseFS(EmbeddedTemplatesFS, "templates/"+baseTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		set.pages[page] = tmpl
	}
	return set, nil
}

// lookup returns an embedded page, or a page file below userDir that
// defines the "content" block of base.html
func (ts *templateSet) lookup(name, userDir string) (*template.Template, error) {
	if tmpl, ok := ts.pages[name]; ok {
		return tmpl, nil
	}
	if userDir == "" {
		return nil, fmt.Errorf("template %s: %w", name, os.ErrNotExist)
	}
	file := filepath.Join(userDir, filepath.Base(name))
	tmpl, err := template.New(baseTemplate).Funcs(ts.funcs).ParseFS(EmbeddedTemplatesFS, "templates/"+baseTemplate)
	if err != nil {
		return nil, err
	}
	if _, err := tmpl.ParseFiles(file); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return tmpl, nil
}

// ListEmbeddedFiles returns a list of all embedded static files for debugging
func ListEmbeddedFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(EmbeddedStaticFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// EmbeddedStaticHandler returns a Gin handler for serving embedded static files
func EmbeddedStaticHandler(prefix string) gin.HandlerFunc {
	staticFS, err := fs.Sub(EmbeddedStaticFS, "static")
	if err != nil {
		panic("Failed to create embedded static filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(staticFS))

	return func(c *gin.Context) {
		p := strings.TrimPrefix(c.Request.URL.Path, prefix)
		if p == "" || p == "/" {
			// no directory listings
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Request.URL.Path = p
		c.Header("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
