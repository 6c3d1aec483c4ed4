package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/favianyip/shunharvest/internal/platform/auth"
	"github.com/favianyip/shunharvest/internal/platform/httpx"
	"github.com/favianyip/shunharvest/internal/services"
)

const maxLoginRequestBody = 4 * 1024

// AdminMiddleware guards back-office routes; it must place the admin claims on the context.
type AdminMiddleware func(http.Handler) http.Handler

// AdminAuthHandlers exchanges the back-office credential for a bearer token.
type AdminAuthHandlers struct {
	auth    services.AdminAuthService
	limiter rateLimiter
}

// NewAdminAuthHandlers constructs login handlers. perMinute <= 0 disables rate limiting.
func NewAdminAuthHandlers(authSvc services.AdminAuthService, perMinute int) *AdminAuthHandlers {
	h := &AdminAuthHandlers{auth: authSvc}
	if perMinute > 0 {
		h.limiter = newFixedWindowLimiter(perMinute, time.Minute, nil)
	}
	return h
}

// Routes registers the login endpoint.
func (h *AdminAuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", rateLimited(h.limiter, "admin_login", h.login))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *AdminAuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.auth == nil {
		writeUnavailable(ctx, w, "auth")
		return
	}
	var req loginRequest
	if !decodeJSONBody(w, r, maxLoginRequestBody, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username and password are required", http.StatusBadRequest))
		return
	}
	token, err := h.auth.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrAdminUnauthorized) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid username or password", http.StatusUnauthorized))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to sign in", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, loginResponse{Token: token.Token, ExpiresAt: formatTime(token.ExpiresAt)})
}

func adminActor(r *http.Request) (string, bool) {
	claims, ok := auth.AdminFromContext(r.Context())
	if !ok || claims == nil || strings.TrimSpace(claims.Username) == "" {
		return "", false
	}
	return claims.Username, true
}

func protect(r chi.Router, requireAdmin AdminMiddleware, register func(chi.Router)) {
	r.Group(func(g chi.Router) {
		if requireAdmin != nil {
			g.Use(requireAdmin)
		}
		register(g)
	})
}
