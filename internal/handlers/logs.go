package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetLogs returns recent processing records, newest first
func (h *Handlers) GetLogs(c *gin.Context) {
	limit, offset := paging(c)
	records, err := h.store.ListProcessingRecords(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch processing records",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetSkips returns recent skip records, newest first
func (h *Handlers) GetSkips(c *gin.Context) {
	limit, offset := paging(c)
	records, err := h.store.ListSkipRecords(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch skip records",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, records)
}
