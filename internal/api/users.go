package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"astromissions/internal/api/middleware"
	"astromissions/internal/model"
	"astromissions/internal/pkg/relation"
	"astromissions/internal/store"

	"github.com/gin-gonic/gin"
)

const usernameTakenMsg = "This username is already taken. Please choose another."

// profile 组装用户资料：关注者、关注中与追踪的任务。
func (s *Server) profile(ctx context.Context, u *model.User) (*model.Profile, error) {
	followers, err := s.relations.Followers(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.relations.Following(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	tracked, err := s.relations.TrackedMissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &model.Profile{
		User:            *u,
		Followers:       followers,
		Following:       following,
		TrackedMissions: tracked,
	}, nil
}

func (s *Server) respondProfile(c *gin.Context, u *model.User) {
	p, err := s.profile(c.Request.Context(), u)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleGetMe(c *gin.Context) {
	u, err := s.users.ByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		s.respondError(c, err, "User not found.")
		return
	}
	s.respondProfile(c, u)
}

func (s *Server) handleGetUser(c *gin.Context) {
	u, err := s.users.ByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.respondError(c, err, "This user profile could not be found.")
		return
	}
	s.respondProfile(c, u)
}

// handleUpdateMe 更新用户名、显示名与简介；空值保持原样。
func (s *Server) handleUpdateMe(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Name     string `json:"name"`
		Bio      string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	username := strings.TrimSpace(req.Username)
	if username != "" {
		if !model.ValidUsername(username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username can only contain lowercase letters and numbers."})
			return
		}
		other, err := s.users.ByUsername(ctx, username)
		switch {
		case err == nil && other.ID != uid:
			c.JSON(http.StatusBadRequest, gin.H{"error": usernameTakenMsg})
			return
		case err != nil && !errors.Is(err, store.ErrNotFound):
			s.respondError(c, err, "")
			return
		}
	}

	u, err := s.users.ByID(ctx, uid)
	if err != nil {
		s.respondError(c, err, "User not found.")
		return
	}
	if username != "" {
		u.Username = username
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	}
	if bio := strings.TrimSpace(req.Bio); bio != "" {
		u.Bio = bio
	}
	if err := s.users.Save(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": usernameTakenMsg})
			return
		}
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleTrackedMissions(c *gin.Context) {
	missions, err := s.relations.TrackedMissions(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(missions), "data": missions})
}

// handleToggleTrack 追踪或取消追踪任务。missionId 可以是数字 ID 或 slug。
func (s *Server) handleToggleTrack(c *gin.Context) {
	ref := c.Param("missionId")
	m, err := s.missions.ByRef(c.Request.Context(), ref)
	if err != nil {
		s.respondError(c, err, fmt.Sprintf("Mission not found with id of %s", ref))
		return
	}
	tracked, err := s.toggle(c, relation.Track, m.ID)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	msg := "Mission untracked"
	if tracked {
		msg = "Mission tracked"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})
}

// handleToggleFollow 关注或取消关注用户，不允许关注自己。
func (s *Server) handleToggleFollow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.users.ByID(c.Request.Context(), id); err != nil {
		s.respondError(c, err, "User not found.")
		return
	}
	followed, err := s.toggle(c, relation.Follow, id)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	msg := "User unfollowed successfully."
	if followed {
		msg = "User followed successfully."
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg})
}
