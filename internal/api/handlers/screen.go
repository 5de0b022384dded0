package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"story-palace/internal/screen"
)

type ScreenHandler struct {
	screen *screen.Screen
}

func NewScreenHandler(s *screen.Screen) *ScreenHandler {
	return &ScreenHandler{screen: s}
}

// GetScreen returns the latest snapshot.
func (h *ScreenHandler) GetScreen(c *gin.Context) {
	c.JSON(http.StatusOK, h.screen.Snapshot())
}

// PostEvent feeds one input event to the screen and returns the
// resulting snapshot. Playback failures are reported in the snapshot's
// error field with a 200.
func (h *ScreenHandler) PostEvent(c *gin.Context) {
	var ev screen.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.screen.Dispatch(c.Request.Context(), ev)
	switch {
	case errors.Is(err, screen.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, screen.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.Error(err)
		c.AbortWithStatus(http.StatusRequestTimeout)
	default:
		c.JSON(http.StatusOK, snap)
	}
}

// Stream pushes every snapshot as a server-sent "snapshot" event until
// the client goes away or the screen stops.
func (h *ScreenHandler) Stream(c *gin.Context) {
	updates, cancel := h.screen.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
