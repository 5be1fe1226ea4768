package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"authguard/internal/apierr"
	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/guard"
	"authguard/internal/rbac"
	"authguard/internal/users"
	"authguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Users   *users.Service
	Codec   *auth.Codec
	Cookies *auth.CookieStore
	Guards  *guard.Guards
	Audit   *audit.Service
}

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User   users.User     `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.InvalidRequest("email, handle and password are required"))
		return
	}

	u, err := h.Users.Register(c.Request.Context(), req.Email, req.Handle, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, u)
}

// Login answers unknown e-mail and wrong password identically.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.InvalidRequest("email and password are required"))
		return
	}

	ctx := c.Request.Context()
	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			h.Audit.LoginFailed(ctx, req.Email, c.ClientIP())
			apierr.Abort(c, apierr.InvalidCredentials())
			return
		}
		h.fail(c, err)
		return
	}

	h.Guards.ForgiveAttempts(c)
	h.Audit.LoginSucceeded(ctx, u.ID, c.ClientIP())
	h.startSession(c, http.StatusOK, u)
}

// Refresh renews the pair. Claims come from the store, not the old token, so
// role and verification changes take effect here.
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Abort(c, apierr.InvalidRequest("invalid json"))
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(auth.RefreshCookie)
	}

	claimed, ok := h.Codec.VerifyRefreshToken(token)
	if !ok {
		apierr.Abort(c, apierr.InvalidRefreshToken())
		return
	}

	ctx := c.Request.Context()
	u, err := h.Users.Get(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			h.Cookies.Clear(c.Writer, c.Request)
			apierr.Abort(c, apierr.InvalidRefreshToken())
			return
		}
		h.fail(c, err)
		return
	}

	pair, err := h.Codec.IssuePair(u.Identity())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.Attach(c.Writer, c.Request, pair)
	h.Audit.TokenRefreshed(ctx, u.ID, c.ClientIP())
	apierr.OK(c, http.StatusOK, gin.H{"tokens": pair})
}

func (h *Handlers) Logout(c *gin.Context) {
	h.Cookies.Clear(c.Writer, c.Request)
	apierr.OK(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (h *Handlers) CSRFToken(c *gin.Context) {
	token, err := guard.NewCSRFToken()
	if err != nil {
		h.fail(c, err)
		return
	}
	guard.SetCSRFCookie(c, token, h.Cookies.Secure(c.Request))
	apierr.OK(c, http.StatusOK, gin.H{"csrfToken": token})
}

func (h *Handlers) startSession(c *gin.Context, status int, u users.User) {
	pair, err := h.Codec.IssuePair(u.Identity())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Cookies.Attach(c.Writer, c.Request, pair)
	c.Set(logger.KeyUserID, u.ID)
	apierr.OK(c, status, sessionResponse{User: u, Tokens: pair})
}

// --- Account ---

func (h *Handlers) Me(c *gin.Context) {
	id, _ := guard.Identity(c)
	apierr.OK(c, http.StatusOK, gin.H{"user": id})
}

type updateUserRequest struct {
	Handle string `json:"handle" binding:"required"`
}

func (h *Handlers) UpdateUser(c *gin.Context) {
	target, _ := guard.OwnerID(c)
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.InvalidRequest("handle is required"))
		return
	}

	u, err := h.Users.UpdateHandle(c.Request.Context(), target, req.Handle)
	if err != nil {
		h.fail(c, err)
		return
	}
	apierr.OK(c, http.StatusOK, gin.H{"user": u})
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	target, _ := guard.OwnerID(c)
	actor, _ := guard.Identity(c)

	ctx := c.Request.Context()
	if err := h.Users.Delete(ctx, target); err != nil {
		h.fail(c, err)
		return
	}
	h.Audit.AccountDeleted(ctx, actor.ID, target, c.ClientIP())
	if actor.ID == target {
		h.Cookies.Clear(c.Writer, c.Request)
	}
	apierr.OK(c, http.StatusOK, gin.H{"deleted": true})
}

// --- Admin ---

func (h *Handlers) ListUsers(c *gin.Context) {
	limit, offset, ok := page(c)
	if !ok {
		return
	}
	list, err := h.Users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	apierr.OK(c, http.StatusOK, gin.H{"users": list, "limit": limit, "offset": offset})
}

func (h *Handlers) VerifyUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.Users.Verify(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	apierr.OK(c, http.StatusOK, gin.H{"user": u})
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *Handlers) ChangeRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.InvalidRequest("role is required"))
		return
	}
	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		apierr.Abort(c, apierr.InvalidRequest("unknown role"))
		return
	}

	ctx := c.Request.Context()
	before, u, err := h.Users.ChangeRole(ctx, id, role)
	if err != nil {
		h.fail(c, err)
		return
	}
	actor, _ := guard.Identity(c)
	h.Audit.RoleChanged(ctx, actor.ID, id, string(before), string(u.Role), c.ClientIP())
	apierr.OK(c, http.StatusOK, gin.H{"user": u})
}

func (h *Handlers) AuditLog(c *gin.Context) {
	limit, _, ok := page(c)
	if !ok {
		return
	}
	events, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	apierr.OK(c, http.StatusOK, gin.H{"events": events})
}

// --- helpers ---

func page(c *gin.Context) (limit, offset int, ok bool) {
	limit = defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			apierr.Abort(c, apierr.InvalidRequest("limit must be between 1 and 100"))
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierr.Abort(c, apierr.InvalidRequest("offset must be >= 0"))
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierr.Abort(c, apierr.InvalidRequest("invalid id"))
		return 0, false
	}
	return id, true
}

// fail maps service errors to the wire envelope. Unknown errors are logged
// and reported without detail.
func (h *Handlers) fail(c *gin.Context, err error) {
	var ve *users.ValidationError
	switch {
	case errors.As(err, &ve):
		apierr.Abort(c, apierr.InvalidRequest(ve.Error()))
	case errors.Is(err, users.ErrAlreadyExists):
		apierr.Abort(c, apierr.Conflict("email or handle already taken"))
	case errors.Is(err, users.ErrNotFound):
		apierr.Abort(c, apierr.NotFound("user"))
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		apierr.Abort(c, err)
	}
}
