package web

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/shopspring/decimal"
	"golang.org/x/text/message"
)

// templateFuncs returns the helpers available to every page
func templateFuncs(p *message.Printer) template.FuncMap {
	return template.FuncMap{
		"md5": md5Hex,
		// gravatar hashes the trimmed, lowercased address
		"gravatar": func(s string) string {
			return md5Hex(strings.ToLower(strings.TrimSpace(s)))
		},
		"hours": func(v any) string {
			switch h := v.(type) {
			case decimal.Decimal:
				return p.Sprintf("%.2f", h.InexactFloat64())
			case float64:
				return p.Sprintf("%.2f", h)
			case int64:
				return p.Sprintf("%.2f", float64(h))
			}
			return fmt.Sprint(v)
		},
		"unixtime": func(ts int64, layout string) string {
			return time.Unix(ts, 0).Format(layout)
		},
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("15:04")
		},
		"selected": func(list []string, v string) bool {
			for _, s := range list {
				if s == v {
					return true
				}
			}
			return false
		},
	}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// getBaseTemplateData creates a TemplateData struct with the request's user
func (s *WebServer) getBaseTemplateData(c *gin.Context, title string) TemplateData {
	data := TemplateData{
		Title:       template.HTML(title),
		CurrentTime: s.Clock().Format("2006-01-02 15:04:05"),
		AppVersion:  config.AppVersion,
		User:        c.GetString(ctxKeyUser),
	}
	if ucfg := userConfigFrom(c); ucfg != nil {
		data.HumanName = ucfg.HumanName()
	}
	return data
}

// renderError renders the error page with the failure and a stack trace
func (s *WebServer) renderError(c *gin.Context, statusCode int, message string, stack string) {
	errorData := ErrorPageData{
		TemplateData: s.getBaseTemplateData(c, "Error"),
		Error:        message,
		StackTrace:   stack,
		StatusCode:   statusCode,
	}
	log.Printf("[ERROR]: %d %s %s: %s\n%s", statusCode, c.Request.Method, c.Request.URL.Path, message, stack)

	tmpl, ok := s.templates.pages["error.html"]
	if !ok {
		c.String(statusCode, "Error encountered: %s\n\n%s", message, stack)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, baseTemplate, errorData); err != nil {
		log.Printf("[ERROR]: rendering error template: %v", err)
		c.String(statusCode, "Error encountered: %s\n\n%s", message, stack)
		return
	}
	c.Data(statusCode, "text/html; charset=utf-8", buf.Bytes())
}

// fail renders err as a server error and stops the handler chain
func (s *WebServer) fail(c *gin.Context, err error) {
	s.failWithStatus(c, http.StatusInternalServerError, err)
}

func (s *WebServer) failWithStatus(c *gin.Context, statusCode int, err error) {
	s.renderError(c, statusCode, err.Error(), string(debug.Stack()))
	c.Abort()
}

// renderTemplate renders a page. Output is buffered so a template error
// still produces a clean error page.
func (s *WebServer) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	userDir := ""
	if ucfg := userConfigFrom(c); ucfg != nil {
		userDir = userDirOf(ucfg)
	}
	tmpl, err := s.templates.lookup(templateName, userDir)
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, baseTemplate, data); err != nil {
		log.Printf("[WEB]: Error rendering template %s: %v", templateName, err)
		s.fail(c, fmt.Errorf("template %s: %w", templateName, err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
