package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"story-palace/internal/models"
)

// HistoryReader is the read side of the listen log.
type HistoryReader interface {
	Recent(sessionID string, limit int) ([]models.ListenEvent, error)
}

// HistoryHandler serves the listen log independently of the screen
type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(h HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// GetHistory returns recent listen events, newest first.
// Query: ?limit=50&session=<id>
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := h.history.Recent(c.Query("session"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
