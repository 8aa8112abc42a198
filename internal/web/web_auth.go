package web

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const authRealm = `Basic realm="timebook"`

// BasicAuthRequired protects the timesheet routes when a password hash is
// configured
func (s *WebServer) BasicAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Config.AuthEnabled() {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !s.checkCredentials(user, pass) {
			if ok {
				log.Printf("[AUTH]: rejected login for %q from %s", user, c.ClientIP())
			}
			c.Header("WWW-Authenticate", authRealm)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *WebServer) checkCredentials(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.Config.Username)) == 1
	// always run bcrypt so timing does not reveal the username
	passOK := bcrypt.CompareHashAndPassword([]byte(s.Config.PasswordHash), []byte(pass)) == nil
	return userOK && passOK
}

// HashPassword returns the bcrypt hash stored as password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
