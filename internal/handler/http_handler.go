package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/tweet-graph/internal/auth"
	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/service"
	"github.com/weiawesome/tweet-graph/pkg/jwt"
	pkglog "github.com/weiawesome/tweet-graph/pkg/log"
	"github.com/weiawesome/tweet-graph/pkg/middleware"
	"github.com/weiawesome/tweet-graph/pkg/response"
)

// Handler handles HTTP requests for the tweet graph service.
type Handler struct {
	svc            service.SocialGraphService
	auth           *auth.Authenticator
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc service.SocialGraphService, authenticator *auth.Authenticator, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		svc:            svc,
		auth:           authenticator,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	requireAuth := h.authMiddleware.RequireAuth()

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", h.SignUp)
			authGroup.POST("/signin", h.SignIn)
			authGroup.POST("/refresh", h.Refresh)
			authGroup.POST("/signout", requireAuth, h.SignOut)
		}

		me := api.Group("/me", requireAuth)
		{
			me.GET("", h.GetMe)
			me.PATCH("/username", h.Rename)
		}

		api.POST("/tweets", requireAuth, h.PostTweet)
		api.GET("/timeline", h.GetTimeline)

		users := api.Group("/users")
		{
			users.GET("/:username", h.GetProfile)
			users.POST("/:username/follow", requireAuth, h.Follow)
			users.DELETE("/:username/follow", requireAuth, h.Unfollow)
		}
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type renameRequest struct {
	Username string `json:"username" binding:"required"`
}

type postTweetRequest struct {
	Content string `json:"content" binding:"required"`
}

// SignUp handles POST /api/v1/auth/signup.
func (h *Handler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.svc.SignUp(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "sign up failed")
		return
	}
	response.Created(c, user)
}

// SignIn handles POST /api/v1/auth/signin.
func (h *Handler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.auth.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "sign in failed")
		return
	}
	response.Success(c, pair)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err, "refresh failed")
		return
	}
	response.Success(c, pair)
}

// SignOut handles POST /api/v1/auth/signout.
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), caller(c)); err != nil {
		h.fail(c, err, "sign out failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMe handles GET /api/v1/me.
func (h *Handler) GetMe(c *gin.Context) {
	who := caller(c)
	if !who.Authenticated() {
		h.fail(c, domain.ErrNotAuthenticated, "")
		return
	}

	profile, err := h.svc.ViewProfile(c.Request.Context(), who.UserID, false)
	if err != nil {
		h.fail(c, err, "view own profile failed")
		return
	}
	response.Success(c, profile)
}

// Rename handles PATCH /api/v1/me/username.
func (h *Handler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.svc.Rename(c.Request.Context(), caller(c), req.Username)
	if err != nil {
		h.fail(c, err, "rename failed")
		return
	}
	response.Success(c, user)
}

// PostTweet handles POST /api/v1/tweets.
func (h *Handler) PostTweet(c *gin.Context) {
	var req postTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tweet, err := h.svc.Post(c.Request.Context(), caller(c), req.Content)
	if err != nil {
		h.fail(c, err, "post tweet failed")
		return
	}
	response.Created(c, tweet)
}

// GetTimeline handles GET /api/v1/timeline?limit=N.
func (h *Handler) GetTimeline(c *gin.Context) {
	limit := domain.GlobalTimelineBound
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	tweets, err := h.svc.ViewTimeline(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "view timeline failed")
		return
	}
	response.Success(c, gin.H{"tweets": tweets})
}

// GetProfile handles GET /api/v1/users/:username.
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.svc.ViewProfileByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.fail(c, err, "view profile failed")
		return
	}
	response.Success(c, profile)
}

// Follow handles POST /api/v1/users/:username/follow.
// The authenticated user follows the target user.
func (h *Handler) Follow(c *gin.Context) {
	edge, err := h.svc.Follow(c.Request.Context(), caller(c), c.Param("username"))
	if err != nil {
		h.fail(c, err, "follow failed")
		return
	}
	response.Created(c, edge)
}

// Unfollow handles DELETE /api/v1/users/:username/follow.
// The authenticated user unfollows the target user.
func (h *Handler) Unfollow(c *gin.Context) {
	if err := h.svc.Unfollow(c.Request.Context(), caller(c), c.Param("username")); err != nil {
		h.fail(c, err, "unfollow failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func caller(c *gin.Context) domain.Caller {
	return domain.AsUser(middleware.GetUserID(c))
}

// fail maps domain errors onto response envelopes. Unmapped errors are
// logged with msg and reported as 500.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrSelfFollow):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrExpiredToken),
		errors.Is(err, jwt.ErrRevokedToken):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrDuplicateUsername),
		errors.Is(err, domain.ErrNotFollowing):
		response.Conflict(c, err.Error())
	default:
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}
