package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"astromissions/internal/api/middleware"
	"astromissions/internal/model"
	"astromissions/internal/pkg/metrics"
	"astromissions/internal/pkg/notify"
	"astromissions/internal/pkg/otp"
	"astromissions/internal/pkg/token"
	"astromissions/internal/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgEmailTaken     = "An account with this email already exists."
	msgBadCredentials = "The email or password you entered is incorrect."
	msgBadOTP         = "The OTP you entered is invalid or has expired."
	msgNoAccount      = "No account is associated with this email address."

	subjectVerify = "Welcome! Please Verify Your Email"
	subjectReset  = "Password Reset Request"

	maxUsernameProbes = 100
)

// Users 是认证流程需要的用户存储。
type Users interface {
	Create(ctx context.Context, u *model.User) error
	Save(ctx context.Context, u *model.User) error
	ByEmail(ctx context.Context, email string) (*model.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// Limiter 按邮箱限制验证码发送频率。
type Limiter interface {
	Allow(ctx context.Context, id string) (bool, time.Duration, error)
}

// Revoker 注销令牌。
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// Handler 提供注册、验证码校验、登录与找回密码接口。
type Handler struct {
	users    Users
	tokens   *token.Issuer
	mailer   notify.Mailer
	limiter  Limiter
	revoker  Revoker
	otpTTL   time.Duration
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

// NewHandler 创建 Auth Handler。limiter 与 revoker 可以为 nil。
func NewHandler(users Users, tokens *token.Issuer, mailer notify.Mailer, limiter Limiter, revoker Revoker, otpTTL time.Duration, logger *slog.Logger) *Handler {
	if otpTTL <= 0 {
		otpTTL = otp.DefaultTTL
	}
	return &Handler{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		limiter:  limiter,
		revoker:  revoker,
		otpTTL:   otpTTL,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// loginRequest 不校验密码长度，错误密码统一返回 msgBadCredentials。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register 创建未验证用户并发送验证码。
//
// 用户写入成功后邮件发送失败会返回 500，但用户记录保留。
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	email := model.NormalizeEmail(req.Email)

	_, err := h.users.ByEmail(ctx, email)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgEmailTaken})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		h.serverError(c, "lookup user failed", email, err)
		return
	}
	if !h.allowIssue(c, email) {
		return
	}

	username, err := h.uniqueUsername(ctx)
	if err != nil {
		h.serverError(c, "generate username failed", email, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		h.serverError(c, "hash password failed", email, err)
		return
	}
	code, err := otp.Issue(h.now(), h.otpTTL)
	if err != nil {
		h.serverError(c, "issue otp failed", email, err)
		return
	}

	user := model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     model.RoleUser,
		OTP:      code,
	}
	if err := h.users.Create(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgEmailTaken})
			return
		}
		h.serverError(c, "create user failed", email, err)
		return
	}
	metrics.OTPIssuedTotal.WithLabelValues("verify").Inc()

	if err := h.sendOTP(email, subjectVerify, code.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User registered, but failed to send verification email. Please try again."})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", email), slog.String("username", username))
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent to email. Welcome aboard!"})
}

// VerifyOTP 校验注册验证码，成功后标记已验证并签发令牌。
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	email := model.NormalizeEmail(req.Email)

	user, err := h.users.ByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No user found for this email. Please register first."})
		return
	}
	if err != nil {
		h.serverError(c, "lookup user failed", email, err)
		return
	}
	if !h.checkOTP(user, strings.TrimSpace(req.OTP), "verify") {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadOTP})
		return
	}

	user.IsVerified = true
	user.OTP.Consume()
	if err := h.users.Save(ctx, user); err != nil {
		h.serverError(c, "save verified user failed", email, err)
		return
	}

	// 欢迎邮件失败不影响验证结果
	if h.mailer != nil {
		if err := h.mailer.SendWelcome(user.Email, user.Username); err != nil && h.logger != nil {
			h.logger.Warn("send welcome email failed", slog.String("email", email), slog.String("error", err.Error()))
		}
	}

	raw, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		h.serverError(c, "sign token failed", email, err)
		return
	}
	if h.logger != nil {
		h.logger.Info("email verified", slog.String("email", email))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: raw})
}

// Login 校验用户并返回 JWT。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := model.NormalizeEmail(req.Email)

	user, err := h.users.ByEmail(c.Request.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadCredentials})
		return
	}
	if err != nil {
		h.serverError(c, "lookup user failed", email, err)
		return
	}

	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "This account is not verified. Please check your email for the verification OTP."})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadCredentials})
		return
	}

	raw, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		h.serverError(c, "sign token failed", email, err)
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email), slog.String("role", user.Role))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: raw})
}

// ForgotPassword 签发重置密码验证码并发送邮件。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	email := model.NormalizeEmail(req.Email)

	user, err := h.users.ByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNoAccount})
		return
	}
	if err != nil {
		h.serverError(c, "lookup user failed", email, err)
		return
	}
	if !h.allowIssue(c, email) {
		return
	}

	code, err := otp.Issue(h.now(), h.otpTTL)
	if err != nil {
		h.serverError(c, "issue otp failed", email, err)
		return
	}
	user.OTP = code
	if err := h.users.Save(ctx, user); err != nil {
		h.serverError(c, "save reset code failed", email, err)
		return
	}
	metrics.OTPIssuedTotal.WithLabelValues("reset").Inc()

	if err := h.sendOTP(email, subjectReset, code.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send password reset email. Please try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "OTP for password reset has been sent to your email."})
}

// ResetPassword 校验验证码后覆盖密码。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	email := model.NormalizeEmail(req.Email)

	user, err := h.users.ByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNoAccount})
		return
	}
	if err != nil {
		h.serverError(c, "lookup user failed", email, err)
		return
	}
	if !h.checkOTP(user, strings.TrimSpace(req.OTP), "reset") {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadOTP})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		h.serverError(c, "hash password failed", email, err)
		return
	}
	user.Password = string(hash)
	user.OTP.Consume()
	if err := h.users.Save(ctx, user); err != nil {
		h.serverError(c, "save password failed", email, err)
		return
	}

	if h.logger != nil {
		h.logger.Info("password reset", slog.String("email", email))
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Your password has been reset successfully."})
}

// Logout 注销当前令牌，直到其自然过期。
func (h *Handler) Logout(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims != nil && claims.ExpiresAt != nil && h.revoker != nil {
		if err := h.revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			h.serverError(c, "revoke token failed", "", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"msg": "User logged out successfully"})
}

// allowIssue 执行按邮箱的发送频控。Redis 故障时放行并记录日志。
func (h *Handler) allowIssue(c *gin.Context, email string) bool {
	if h.limiter == nil {
		return true
	}
	ok, wait, err := h.limiter.Allow(c.Request.Context(), email)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("otp throttle unavailable", slog.String("email", email), slog.String("error", err.Error()))
		}
		return true
	}
	if ok {
		return true
	}
	metrics.OTPThrottledTotal.Inc()
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "too many requests",
		"retry_after": int(math.Ceil(wait.Seconds())),
	})
	return false
}

func (h *Handler) checkOTP(user *model.User, supplied, purpose string) bool {
	err := user.OTP.Check(supplied, h.now())
	switch {
	case err == nil:
		metrics.OTPCheckTotal.WithLabelValues(purpose, "ok").Inc()
		return true
	case errors.Is(err, otp.ErrExpired):
		metrics.OTPCheckTotal.WithLabelValues(purpose, "expired").Inc()
	default:
		metrics.OTPCheckTotal.WithLabelValues(purpose, "invalid").Inc()
	}
	return false
}

func (h *Handler) sendOTP(email, subject, code string) error {
	if h.mailer == nil {
		return fmt.Errorf("email notifier not configured")
	}
	if err := h.mailer.SendOTP(email, subject, code); err != nil {
		metrics.EmailSendTotal.WithLabelValues("otp", "error").Inc()
		if h.logger != nil {
			h.logger.Warn("send otp email failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		return err
	}
	metrics.EmailSendTotal.WithLabelValues("otp", "ok").Inc()
	return nil
}

func (h *Handler) serverError(c *gin.Context, msg, email string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.String("email", email), slog.String("error", err.Error()))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected server error occurred."})
}

var spaceNames = []string{
	"apollo", "gemini", "mercury", "voyager", "pioneer", "cassini", "galileo",
	"hubble", "kepler", "juno", "artemis", "orion", "soyuz", "vostok",
	"sputnik", "mariner", "viking", "rosetta", "curiosity", "perseverance",
	"chandrayaan", "tianwen", "hayabusa", "dawn", "newhorizons", "skylab",
}

// uniqueUsername 生成 "<航天器名><三位数字>" 形式的用户名，直到未被占用。
func (h *Handler) uniqueUsername(ctx context.Context) (string, error) {
	for i := 0; i < maxUsernameProbes; i++ {
		name, err := randomUsername()
		if err != nil {
			return "", err
		}
		taken, err := h.users.UsernameTaken(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free username after %d attempts", maxUsernameProbes)
}

func randomUsername() (string, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(spaceNames))))
	if err != nil {
		return "", err
	}
	num, err := rand.Int(rand.Reader, big.NewInt(900))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", spaceNames[idx.Int64()], num.Int64()+100), nil
}
