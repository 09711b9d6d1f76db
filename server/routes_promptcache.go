// routes_promptcache.go - Management-Endpunkte fuer den Prompt-Prefix-KV-Cache
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PromptCacheStatusHandler gibt eine Momentaufnahme des Cache-Zustands zurueck
func (s *Server) PromptCacheStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.promptCache.Status())
}

// PromptCacheClearHandler leert den Prompt-Cache vollstaendig
func (s *Server) PromptCacheClearHandler(c *gin.Context) {
	s.promptCache.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
}
