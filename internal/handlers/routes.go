package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRoutes returns the configured category-to-destination table
func (h *Handlers) GetRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": h.table.Categories(),
		"routes":     h.table.Routes(),
	})
}
