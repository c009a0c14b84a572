package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/config"
)

// MetadataHandler serves one catalog document as stored, by short name.
func MetadataHandler(r *Reader) gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		name := c.Param("metadata")
		data, err := r.Raw(c.Request.Context(), name)
		if errors.Is(err, ErrUnknownCatalog) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown catalog"})
			return
		}
		if err != nil {
			config.LogError(logger, "catalog/handlers.go", "MetadataHandler", "load catalog", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	}
}

// ExportHandler streams every catalog as an xlsx workbook.
func ExportHandler(r *Reader) gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=guts-catalogs.xlsx")
		if err := r.WriteWorkbook(c.Request.Context(), c.Writer); err != nil {
			config.LogError(logger, "catalog/handlers.go", "ExportHandler", "write workbook", nil, err)
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	}
}
