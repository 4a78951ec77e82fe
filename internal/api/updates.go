package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"astromissions/internal/api/middleware"
	"astromissions/internal/model"

	"github.com/gin-gonic/gin"
)

type updateRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	ReferenceLink *string `json:"referenceLink"`
}

func (r updateRequest) applyTo(u *model.MissionUpdate) {
	if r.Title != nil {
		u.Title = *r.Title
	}
	if r.Content != nil {
		u.Content = *r.Content
	}
	if r.ReferenceLink != nil {
		u.ReferenceLink = *r.ReferenceLink
	}
}

func (s *Server) missionBySlug(c *gin.Context) (*model.Mission, bool) {
	ref := c.Param("id")
	m, err := s.missions.ByRef(c.Request.Context(), ref)
	if err != nil {
		s.respondError(c, err, fmt.Sprintf("Mission not found with slug of %s", ref))
		return nil, false
	}
	return m, true
}

// handleListMissionUpdates 返回任务下已审核通过的动态，最新在前。
func (s *Server) handleListMissionUpdates(c *gin.Context) {
	m, ok := s.missionBySlug(c)
	if !ok {
		return
	}
	updates, err := s.updates.ListByMission(c.Request.Context(), m.ID, model.UpdateApproved)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(updates), "data": updates})
}

// handleCreateUpdate 提交待审核的任务动态。
func (s *Server) handleCreateUpdate(c *gin.Context) {
	m, ok := s.missionBySlug(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u := model.MissionUpdate{
		Status:    model.UpdatePending,
		MissionID: m.ID,
		AuthorID:  middleware.UserID(c),
		Likes:     []uint{},
	}
	req.applyTo(&u)
	u.Normalize()
	if err := u.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.updates.Create(c.Request.Context(), &u); err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": u})
}

// ownPendingUpdate 加载属于该任务、由当前用户提交且仍待审核的动态。
func (s *Server) ownPendingUpdate(c *gin.Context) (*model.MissionUpdate, bool) {
	m, ok := s.missionBySlug(c)
	if !ok {
		return nil, false
	}
	id, ok := parseID(c, "updateId")
	if !ok {
		return nil, false
	}
	notFound := fmt.Sprintf("Mission update not found with id of %d", id)
	u, err := s.updates.ByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, notFound)
		return nil, false
	}
	if u.MissionID != m.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return nil, false
	}
	if u.AuthorID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "User not authorized to modify this mission update"})
		return nil, false
	}
	if !u.Editable() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This update has already been reviewed and can no longer be changed."})
		return nil, false
	}
	return u, true
}

func (s *Server) handleEditUpdate(c *gin.Context) {
	u, ok := s.ownPendingUpdate(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.applyTo(u)
	u.Normalize()
	if err := u.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.updates.Edit(c.Request.Context(), u); err != nil {
		s.respondError(c, err, "Mission update not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}

func (s *Server) handleDeleteUpdate(c *gin.Context) {
	u, ok := s.ownPendingUpdate(c)
	if !ok {
		return
	}
	if err := s.updates.Delete(c.Request.Context(), u.ID); err != nil {
		s.respondError(c, err, "Mission update not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}

// handleAdminListUpdates 审核队列，可按 status 过滤。
func (s *Server) handleAdminListUpdates(c *gin.Context) {
	updates, err := s.updates.ListByStatus(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(updates), "data": updates})
}

// handleAdminManageUpdate 将 pending 动态标记为 approved 或 rejected。
func (s *Server) handleAdminManageUpdate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.ModerationTarget(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid status. Only "approved" or "rejected" are allowed.`})
		return
	}

	ctx := c.Request.Context()
	notFound := fmt.Sprintf("Update not found with id of %d", id)
	if err := s.updates.SetStatus(ctx, id, req.Status); err != nil {
		s.respondError(c, err, notFound)
		return
	}
	u, err := s.updates.ByID(ctx, id)
	if err != nil {
		s.respondError(c, err, notFound)
		return
	}
	if s.logger != nil {
		s.logger.Info("mission update moderated",
			slog.Uint64("update_id", uint64(id)),
			slog.String("status", req.Status),
			slog.Uint64("admin_id", uint64(middleware.UserID(c))),
		)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}
