package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "crmhub/config"
	U "crmhub/util"
)

// scope constants.
const SCOPE_AUTH_TOKEN = "authToken"

// SetScopeByAuthToken - Request scope set by token on 'Authorization'
// header. Identity resolution belongs to the external auth collaborator;
// this only rejects unauthenticated callers.
func SetScopeByAuthToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("Authorization")
		token = strings.TrimSpace(token)
		if token == "" {
			errorMessage := "Missing authorization header"
			log.WithFields(log.Fields{"error": errorMessage}).Error("Request failed with auth failure.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorMessage})
			return
		}

		if apiToken := C.GetConfig().APIToken; apiToken != "" && token != apiToken {
			errorMessage := "Invalid token"
			log.WithFields(log.Fields{"error": errorMessage}).Error("Request failed because of invalid token.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorMessage})
			return
		}

		U.SetScope(c, SCOPE_AUTH_TOKEN, token)
		c.Next()
	}
}
