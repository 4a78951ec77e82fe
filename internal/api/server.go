package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"astromissions/internal/api/auth"
	"astromissions/internal/api/middleware"
	"astromissions/internal/config"
	"astromissions/internal/model"
	"astromissions/internal/pkg/metrics"
	"astromissions/internal/pkg/notify"
	"astromissions/internal/pkg/outbox"
	"astromissions/internal/pkg/query"
	"astromissions/internal/pkg/ratelimit"
	"astromissions/internal/pkg/relation"
	"astromissions/internal/pkg/revocation"
	"astromissions/internal/pkg/token"
	"astromissions/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	outboxWorkers      = 2
	outboxCapacity     = 64
	outboxTaskTimeout  = 30 * time.Second
	outboxDrainTimeout = 5 * time.Second
)

// Server 封装了 API 服务所需的依赖和路由处理。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	router    *gin.Engine
	auth      *auth.Handler
	tokens    *token.Issuer
	revoked   middleware.RevocationChecker
	users     UserStore
	missions  MissionStore
	updates   UpdateStore
	comments  CommentStore
	relations RelationStore
	outbox    *outbox.Outbox
	queryOpts query.Options
}

type UserStore interface {
	auth.Users
	ByID(ctx context.Context, id uint) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
}

type MissionStore interface {
	Find(ctx context.Context, q query.Query) ([]model.Mission, int64, error)
	ByID(ctx context.Context, id uint) (*model.Mission, error)
	ByRef(ctx context.Context, ref string) (*model.Mission, error)
	Create(ctx context.Context, m *model.Mission) error
	Update(ctx context.Context, m *model.Mission, previousName string) error
	Delete(ctx context.Context, id uint) error
}

type UpdateStore interface {
	Create(ctx context.Context, u *model.MissionUpdate) error
	ByID(ctx context.Context, id uint) (*model.MissionUpdate, error)
	ListByMission(ctx context.Context, missionID uint, status string) ([]model.MissionUpdate, error)
	ListByStatus(ctx context.Context, status string) ([]model.MissionUpdate, error)
	Edit(ctx context.Context, u *model.MissionUpdate) error
	SetStatus(ctx context.Context, id uint, status string) error
	Delete(ctx context.Context, id uint) error
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	ByID(ctx context.Context, id uint) (*model.Comment, error)
	ListForUpdate(ctx context.Context, updateID uint) ([]model.Comment, error)
	Delete(ctx context.Context, id uint) error
}

// RelationStore 切换并读取关注、追踪与点赞关系。
type RelationStore interface {
	Toggle(ctx context.Context, kind relation.Kind, subject, object uint) (bool, error)
	Subjects(ctx context.Context, kind relation.Kind, object uint) ([]uint, error)
	Followers(ctx context.Context, userID uint) ([]model.UserRef, error)
	Following(ctx context.Context, userID uint) ([]model.UserRef, error)
	TrackedMissions(ctx context.Context, userID uint) ([]model.Mission, error)
	Trackers(ctx context.Context, missionID uint) ([]model.UserRef, error)
}

// Deps 是构造 Server 的依赖集合，测试中可替换为内存实现。
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Tokens    *token.Issuer
	Revoked   middleware.RevocationChecker
	Auth      *auth.Handler
	Users     UserStore
	Missions  MissionStore
	Updates   UpdateStore
	Comments  CommentStore
	Relations RelationStore
	Outbox    *outbox.Outbox
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接数据库（MySQL、Postgres 或 SQLite）并执行自动迁移
// 2. 连接 Redis（验证码频控与令牌注销）
// 3. 启动后台邮件投递
// 4. 组装存储、认证与路由
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	users := store.NewUsers(db)
	tokens := token.NewIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	revocations := revocation.NewList(rdb)
	limiter := ratelimit.NewRedisRateLimiter(rdb, logger, "astromissions:otp:", cfg.Security.OTPRate, cfg.Security.OTPBurst)
	ob := outbox.New(logger, outboxWorkers, outboxCapacity, outboxTaskTimeout)
	// worker 在 Close 时排空队列后退出，不随退出信号取消
	ob.Start(context.WithoutCancel(ctx))
	mailer := notify.NewQueuedMailer(notify.NewEmailNotifier(&cfg.Email, logger), ob)

	return New(Deps{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Tokens:    tokens,
		Revoked:   revocations,
		Auth:      auth.NewHandler(users, tokens, mailer, limiter, revocations, cfg.Security.OTPTTL, logger),
		Users:     users,
		Missions:  store.NewMissions(db),
		Updates:   store.NewUpdates(db),
		Comments:  store.NewComments(db),
		Relations: store.NewRelations(db),
		Outbox:    ob,
	}), nil
}

// New 用已构造好的依赖创建 Server 并注册路由。
func New(d Deps) *Server {
	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.Metrics())

	s := &Server{
		cfg:       d.Config,
		logger:    d.Logger,
		db:        d.DB,
		rdb:       d.Redis,
		router:    r,
		auth:      d.Auth,
		tokens:    d.Tokens,
		revoked:   d.Revoked,
		users:     d.Users,
		missions:  d.Missions,
		updates:   d.Updates,
		comments:  d.Comments,
		relations: d.Relations,
		outbox:    d.Outbox,
		queryOpts: query.Options{
			DefaultLimit: d.Config.Query.DefaultLimit,
			MaxLimit:     d.Config.Query.MaxLimit,
		},
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 等待后台邮件投递完成，然后关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.outbox != nil {
		if err := s.outbox.Shutdown(outboxDrainTimeout); err != nil {
			firstErr = err
		}
		if s.logger != nil {
			st := s.outbox.Stats()
			s.logger.Info("outbox drained",
				slog.Int64("enqueued", st.Enqueued),
				slog.Int64("succeeded", st.Succeeded),
				slog.Int64("failed", st.Failed),
				slog.Int64("dropped", st.Dropped),
				slog.Int64("panics", st.Panics),
			)
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil && firstErr == nil {
			firstErr = closeErr
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Space Missions API"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	requireAuth := middleware.AuthMiddleware(s.tokens, s.revoked, s.logger)

	// 认证接口同时挂在 /api/auth 与 /api/v1/auth
	for _, prefix := range []string{"/api/auth", "/api/v1/auth"} {
		a := s.router.Group(prefix)
		a.POST("/register", s.auth.Register)
		a.POST("/verify-otp", s.auth.VerifyOTP)
		a.POST("/login", s.auth.Login)
		a.POST("/forgot-password", s.auth.ForgotPassword)
		a.POST("/reset-password", s.auth.ResetPassword)
		a.GET("/me", requireAuth, s.handleGetMe)
		a.PUT("/me", requireAuth, s.handleUpdateMe)
		a.GET("/user/:username", requireAuth, s.handleGetUser)
		a.POST("/logout", requireAuth, s.auth.Logout)
	}

	v1 := s.router.Group("/api/v1")

	users := v1.Group("/users", requireAuth)
	users.GET("/tracked-missions", s.handleTrackedMissions)
	users.PUT("/missions/:missionId/track", s.handleToggleTrack)
	users.PUT("/:id/follow", s.handleToggleFollow)

	missions := v1.Group("/missions")
	missions.GET("", s.handleListMissions)
	missions.GET("/:id", s.handleGetMission)
	missions.GET("/:id/trackedby", s.handleMissionTrackers)
	missions.GET("/:id/updates", s.handleListMissionUpdates)
	missions.POST("/:id/updates", requireAuth, s.handleCreateUpdate)
	missions.PUT("/:id/updates/:updateId", requireAuth, s.handleEditUpdate)
	missions.DELETE("/:id/updates/:updateId", requireAuth, s.handleDeleteUpdate)

	v1.POST("/updates/:id/like", requireAuth, s.handleLikeUpdate)
	v1.GET("/updates/:id/comments", s.handleListComments)
	v1.POST("/updates/:id/comments", requireAuth, s.handleCreateComment)
	v1.DELETE("/comments/:id", requireAuth, s.handleDeleteComment)
	v1.POST("/comments/:id/like", requireAuth, s.handleLikeComment)

	admin := v1.Group("/admin", requireAuth, middleware.RequireRole(model.RoleAdmin))
	admin.GET("/updates", s.handleAdminListUpdates)
	admin.PUT("/updates/:id", s.handleAdminManageUpdate)
	admin.POST("/missions", s.handleCreateMission)
	admin.PUT("/missions/:id", s.handleUpdateMission)
	admin.DELETE("/missions/:id", s.handleDeleteMission)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID 解析路径中的数字 ID，非法时写入 400 并返回 false。
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
