// Package web provides the HTTP server and web interface for go-timebook-web
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-timebook-web/internal/cache"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/models"
	"github.com/go-while/go-timebook-web/internal/report"
	"github.com/go-while/go-timebook-web/internal/userinfo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	nameCacheEntries = 64
	nameCacheMaxAge  = 10 * time.Minute
)

// WebServer represents the web server
type WebServer struct {
	Router *gin.Engine
	Config *config.WebConfig
	Env    config.Env

	// LookupHome maps a timebook user to a home directory
	LookupHome func(username string) (string, error)
	// LookupName returns the display name of a timebook user
	LookupName func(ctx context.Context, username string) string
	// Clock is handed to every opened timesheet
	Clock func() time.Time

	templates *templateSet
	names     *cache.NameCache
	proxies   []netip.Prefix
	http      *http.Server
}

// TemplateData represents common template data
type TemplateData struct {
	Title       template.HTML
	CurrentTime string
	AppVersion  string
	User        string
	HumanName   string
}

// HomePageData represents data for the dashboard
type HomePageData struct {
	TemplateData
	Current     *models.TimesheetRow
	TodaysTasks []*models.TimesheetRow
	HoursTotal  float64
}

// ChartsPageData represents data for the charts page
type ChartsPageData struct {
	TemplateData
	BillableData  []report.BillablePoint
	AllClientList []string
	ClientList    []string
	ClientByDay   []report.ProjectDay
	Start         string
	End           string
	Project       []string
}

// ErrorPageData represents data for the error page
type ErrorPageData struct {
	TemplateData
	Error      string
	StackTrace string
	StatusCode int
}

// NewServer creates a new web server instance
func NewServer(webconfig *config.WebConfig, env config.Env) (*WebServer, error) {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	printer := message.NewPrinter(language.Make(webconfig.Locale))
	tmpls, err := loadTemplates(templateFuncs(printer))
	if err != nil {
		return nil, err
	}

	proxies, err := webconfig.TrustedPrefixes()
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Configure Gin to trust reverse proxy headers
	if err := router.SetTrustedProxies(webconfig.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	// SSL headers only when we terminate TLS ourselves
	if webconfig.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}

	names := cache.NewNameCache(userinfo.HumanName, nameCacheEntries, nameCacheMaxAge)
	server := &WebServer{
		Router:     router,
		Config:     webconfig,
		Env:        env,
		LookupHome: userinfo.HomeDir,
		LookupName: names.Get,
		Clock:      time.Now,
		templates:  tmpls,
		names:      names,
		proxies:    proxies,
	}

	router.Use(server.ApacheLogFormat())
	router.Use(server.RecoveryMiddleware())
	router.Use(secure.New(secureConfig))
	router.Use(server.ReverseProxyMiddleware())

	server.setupRoutes()
	server.http = &http.Server{
		Addr:              ":" + strconv.Itoa(webconfig.ListenPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	s.Router.GET("/static/*filepath", EmbeddedStaticHandler("/static"))
	s.Router.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	s.Router.GET("/version", func(c *gin.Context) {
		c.String(http.StatusOK, config.AppVersion)
	})

	sheet := s.Router.Group("/")
	sheet.Use(s.BasicAuthRequired())
	sheet.Use(s.gatherInformation())
	{
		sheet.GET("/", s.homePage)
		sheet.GET("/charts/", s.chartsPage)
		sheet.POST("/posttest/", s.postTest)
	}
}

// Start starts the web server with SSL support if configured.
// It returns http.ErrServerClosed after Shutdown.
func (s *WebServer) Start() error {
	addr := s.http.Addr
	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		log.Printf("[WEB]: Starting HTTPS server on %s", addr)
		return s.http.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	}
	log.Printf("[WEB]: Starting HTTP server on %s", addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running ones
func (s *WebServer) Shutdown(ctx context.Context) error {
	log.Printf("[WEB]: shutting down")
	defer s.names.Stop()
	return s.http.Shutdown(ctx)
}

// fromTrustedProxy reports whether the connecting peer is a trusted proxy.
// remoteAddr must be the address of the connection, not a forwarded one.
func (s *WebServer) fromTrustedProxy(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ReverseProxyMiddleware handles X-Forwarded headers when running behind a
// reverse proxy. Headers from peers outside trusted_proxies are ignored.
func (s *WebServer) ReverseProxyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		trusted := s.fromTrustedProxy(c.Request.RemoteAddr)
		c.Set(ctxKeyFromProxy, trusted)
		if !trusted {
			c.Next()
			return
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" {
			c.Request.URL.Scheme = "https"
		}
		// first address is the original client
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			if clientIP := strings.TrimSpace(ips[0]); clientIP != "" {
				c.Request.RemoteAddr = clientIP + ":0"
			}
		}
		if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
			c.Request.RemoteAddr = realIP + ":0"
		}
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			c.Request.Host = host
		}
		c.Next()
	}
}

func (s *WebServer) ApacheLogFormat() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf(`%s - %s [%s] "%s %s %s" %d %d "%s" "%s"`+"\n",
			param.ClientIP,
			remoteUser(param.Keys),
			param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.BodySize,
			param.Request.Referer(),
			param.Request.UserAgent(),
		)
	})
}

func remoteUser(keys map[string]any) string {
	if u, ok := keys[ctxKeyUser].(string); ok && u != "" {
		return u
	}
	return "-"
}
