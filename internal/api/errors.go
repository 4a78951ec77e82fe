package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"astromissions/internal/model"
	"astromissions/internal/pkg/query"
	"astromissions/internal/pkg/relation"
	"astromissions/internal/store"

	"github.com/gin-gonic/gin"
)

// respondError 将领域错误映射为 HTTP 状态码。notFound 为 404 时返回的提示。
func (s *Server) respondError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": ")})
	case errors.Is(err, query.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		if notFound == "" {
			notFound = "Resource not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate field value entered"})
	case errors.Is(err, store.ErrNotPending):
		c.JSON(http.StatusBadRequest, gin.H{"error": "This update has already been reviewed and can no longer be changed."})
	case errors.Is(err, relation.ErrSelfRelation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself."})
	default:
		if s.logger != nil {
			s.logger.Error("request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error"})
	}
}
