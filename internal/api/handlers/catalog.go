package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"story-palace/internal/catalog"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// GetCatalog lists the stories in dial order.
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	stories := h.catalog.Stories()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(stories),
		"stories": stories,
	})
}
