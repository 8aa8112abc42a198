package web

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
)

// gin context keys
const (
	ctxKeyUser       = "timebook_user"
	ctxKeyUserConfig = "timebook_config"
	ctxKeyTimesheet  = "timebook_sheet"
	ctxKeyFromProxy  = "timebook_from_proxy"
)

// timebookUser returns the user a request runs as: the user header when
// configured and sent by a trusted proxy, else TIMEBOOK_USER
func (s *WebServer) timebookUser(c *gin.Context) string {
	if s.Config.UserHeader == "" {
		return s.Env.User
	}
	u := c.GetHeader(s.Config.UserHeader)
	if u == "" {
		return s.Env.User
	}
	if !c.GetBool(ctxKeyFromProxy) {
		log.Printf("[WEB]: ignoring %s header from untrusted peer %s", s.Config.UserHeader, c.Request.RemoteAddr)
		return s.Env.User
	}
	return u
}

// gatherInformation loads the user's config and opens their timesheet for
// the handlers below it. The timesheet is closed when the request ends.
func (s *WebServer) gatherInformation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		username := s.timebookUser(c)
		if username == "" {
			s.fail(c, config.ErrNoUser)
			return
		}
		c.Set(ctxKeyUser, username)

		home, err := s.LookupHome(username)
		if err != nil {
			s.fail(c, err)
			return
		}
		paths := config.PathsForHome(home)

		ucfg, err := config.LoadUserConfig(paths.ConfigFile)
		if err != nil {
			s.fail(c, err)
			return
		}
		ucfg.SetHumanName(s.LookupName(ctx, username))
		c.Set(ctxKeyUserConfig, ucfg)

		ts, err := database.Open(ctx, paths.SheetsDB, database.OpenOptions{})
		if err != nil {
			s.fail(c, err)
			return
		}
		defer ts.Close()
		ts.SetClock(s.Clock)
		c.Set(ctxKeyTimesheet, ts)

		if s.Config.Debug {
			log.Printf("[WEB]: configuration of %s loaded from %s:\n%s", username, ucfg.Path, ucfg)
		}
		c.Next()
	}
}

// RecoveryMiddleware turns a panic in a handler into the error page
func (s *WebServer) RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if r == http.ErrAbortHandler {
					panic(r)
				}
				s.renderError(c, http.StatusInternalServerError, fmt.Sprint(r), string(debug.Stack()))
				c.Abort()
			}
		}()
		c.Next()
	}
}

func userConfigFrom(c *gin.Context) *config.UserConfig {
	if v, ok := c.Get(ctxKeyUserConfig); ok {
		if ucfg, ok := v.(*config.UserConfig); ok {
			return ucfg
		}
	}
	return nil
}

func timesheetFrom(c *gin.Context) *database.Timesheet {
	if v, ok := c.Get(ctxKeyTimesheet); ok {
		if ts, ok := v.(*database.Timesheet); ok {
			return ts
		}
	}
	return nil
}

// userDirOf is where user supplied templates live
func userDirOf(ucfg *config.UserConfig) string {
	if ucfg.Path == "" {
		return ""
	}
	return filepath.Dir(ucfg.Path)
}
