package controllers

import (
	"log"
	"net/http"
	"strings"

	"statusbot/internal/plugin"

	"github.com/gin-gonic/gin"
)

// HandleEvent accepts a chat event from the host and returns the plugin replies
func HandleEvent(runner *plugin.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev plugin.Event
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event: " + err.Error()})
			return
		}

		if strings.TrimSpace(ev.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
			return
		}

		msgs, ok := runner.Dispatch(c.Request.Context(), ev)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown command"})
			return
		}

		log.Printf("[EVENT] %q from %s answered with %d message(s)", plugin.CommandName(ev.Message), ev.Sender, len(msgs))
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// ListPlugins returns the loaded plugins
func ListPlugins(runner *plugin.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := make([]gin.H, 0)
		for _, p := range runner.Plugins() {
			list = append(list, gin.H{
				"name":        p.Name(),
				"description": p.Description(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"plugins": list})
	}
}
