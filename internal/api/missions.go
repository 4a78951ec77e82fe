package api

import (
	"net/http"
	"time"

	"astromissions/internal/api/middleware"
	"astromissions/internal/model"
	"astromissions/internal/pkg/metrics"
	"astromissions/internal/pkg/query"

	"github.com/gin-gonic/gin"
)

// handleListMissions 按查询参数过滤、排序、分页任务列表。
//
// 响应: {success, count, total, pagination, data}
func (s *Server) handleListMissions(c *gin.Context) {
	q, err := query.Parse(c.Request.URL.Query(), s.queryOpts)
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	start := time.Now()
	missions, total, err := s.missions.Find(c.Request.Context(), q)
	metrics.MissionQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.respondError(c, err, "")
		return
	}

	data, err := query.Project(missions, q.Select)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(missions),
		"total":      total,
		"pagination": q.Paginate(total),
		"data":       data,
	})
}

// handleGetMission 按 slug 或数字 ID 返回单个任务。
func (s *Server) handleGetMission(c *gin.Context) {
	m, err := s.missions.ByRef(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Mission not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

func (s *Server) handleMissionTrackers(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := s.missions.ByRef(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Mission not found")
		return
	}
	trackers, err := s.relations.Trackers(ctx, m.ID)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(trackers), "data": trackers})
}

func (s *Server) handleCreateMission(c *gin.Context) {
	var m model.Mission
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.ID = 0
	m.Slug = ""
	uid := middleware.UserID(c)
	m.CreatedByUserID = &uid
	m.Normalize()
	if err := m.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.missions.Create(c.Request.Context(), &m); err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": m})
}

// handleUpdateMission 将请求体合并到现有任务上；名称变化时重新生成 slug。
func (s *Server) handleUpdateMission(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	m, err := s.missions.ByID(ctx, id)
	if err != nil {
		s.respondError(c, err, "Mission not found")
		return
	}
	previous := *m
	if err := c.ShouldBindJSON(m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.ID = previous.ID
	m.Slug = previous.Slug
	m.CreatedByUserID = previous.CreatedByUserID
	m.CreatedAt = previous.CreatedAt
	if m.MissionID == "" {
		m.MissionID = previous.MissionID
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		s.respondError(c, err, "")
		return
	}
	if err := s.missions.Update(ctx, m, previous.MissionName); err != nil {
		s.respondError(c, err, "Mission not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

func (s *Server) handleDeleteMission(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.missions.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err, "Mission not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}
