package util

import (
	"github.com/gin-gonic/gin"
)

// Request scope helpers. Scope values are set by middleware and read by
// handlers through these, never through gin's context keys directly.

func SetScope(c *gin.Context, key string, value interface{}) {
	c.Set(key, value)
}

func GetScopeByKeyAsString(c *gin.Context, key string) string {
	value, exists := c.Get(key)
	if !exists {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}
