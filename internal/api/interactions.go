package api

import (
	"fmt"
	"net/http"

	"astromissions/internal/api/middleware"
	"astromissions/internal/model"
	"astromissions/internal/pkg/metrics"
	"astromissions/internal/pkg/relation"

	"github.com/gin-gonic/gin"
)

// toggle 切换当前用户与 object 的关系并记录指标。
func (s *Server) toggle(c *gin.Context, kind relation.Kind, object uint) (bool, error) {
	linked, err := s.relations.Toggle(c.Request.Context(), kind, middleware.UserID(c), object)
	if err != nil {
		return false, err
	}
	action := "unlinked"
	if linked {
		action = "linked"
	}
	metrics.RelationToggleTotal.WithLabelValues(string(kind), action).Inc()
	return linked, nil
}

// handleLikeUpdate 点赞或取消点赞任务动态，返回最新的点赞用户列表。
func (s *Server) handleLikeUpdate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.updates.ByID(ctx, id); err != nil {
		s.respondError(c, err, fmt.Sprintf("Mission update not found with id of %d", id))
		return
	}
	if _, err := s.toggle(c, relation.LikeUpdate, id); err != nil {
		s.respondError(c, err, "")
		return
	}
	likes, err := s.relations.Subjects(ctx, relation.LikeUpdate, id)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": likes})
}

// handleListComments 返回动态下的顶层评论及其回复。
func (s *Server) handleListComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.updates.ByID(ctx, id); err != nil {
		s.respondError(c, err, fmt.Sprintf("Mission update not found with id of %d", id))
		return
	}
	comments, err := s.comments.ListForUpdate(ctx, id)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(comments), "data": comments})
}

func (s *Server) handleCreateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content       string `json:"content"`
		ParentComment *uint  `json:"parentComment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.updates.ByID(ctx, id); err != nil {
		s.respondError(c, err, fmt.Sprintf("Mission update not found with id of %d", id))
		return
	}
	if req.ParentComment != nil {
		parent, err := s.comments.ByID(ctx, *req.ParentComment)
		if err != nil {
			s.respondError(c, err, "Parent comment not found")
			return
		}
		// 回复必须挂在同一条动态下
		if parent.MissionUpdateID != id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parent comment belongs to a different update"})
			return
		}
	}

	comment := model.Comment{
		Content:         req.Content,
		AuthorID:        middleware.UserID(c),
		MissionUpdateID: id,
		ParentID:        req.ParentComment,
	}
	comment.Normalize()
	if err := comment.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.comments.Create(ctx, &comment); err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": comment})
}

// handleDeleteComment 仅作者可删除；回复与点赞一并删除。
func (s *Server) handleDeleteComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	notFound := fmt.Sprintf("Comment not found with id of %d", id)
	comment, err := s.comments.ByID(ctx, id)
	if err != nil {
		s.respondError(c, err, notFound)
		return
	}
	if comment.AuthorID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "User not authorized to delete this comment"})
		return
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		s.respondError(c, err, notFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}

func (s *Server) handleLikeComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.comments.ByID(ctx, id); err != nil {
		s.respondError(c, err, fmt.Sprintf("Comment not found with id of %d", id))
		return
	}
	if _, err := s.toggle(c, relation.LikeComment, id); err != nil {
		s.respondError(c, err, "")
		return
	}
	likes, err := s.relations.Subjects(ctx, relation.LikeComment, id)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": likes})
}
