package api

import (
	"errors"
	"net/http"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/middleware"
)

// loginResponse is the body of a successful login or refresh.
type loginResponse struct {
	Token *auth.TokenBundle `json:"token"`
	User  *auth.AdminUser   `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// login handles POST /api/v1/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		s.countLogin("validation")
		return
	}

	bundle, user, err := s.auth.Login(r.Context(), req, s.requestTenantID(r))
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			s.countLogin("validation")
			httputil.WriteUnprocessableEntity(w, "The given data was invalid", verr.Fields)
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.countLogin("invalid_credentials")
			httputil.WriteUnauthorized(w, "Invalid credentials")
		case errors.Is(err, auth.ErrAccountInactive):
			s.countLogin("inactive")
			httputil.WriteForbidden(w, "Account is inactive")
		default:
			s.countLogin("error")
			s.internalError(w, r, err)
		}
		return
	}

	s.countLogin("success")
	s.countTokenIssued("login")
	httputil.WriteSuccess(w, loginResponse{Token: bundle, User: user})
}

// refresh handles POST /api/v1/auth/refresh
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	bundle, user, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			httputil.WriteUnprocessableEntity(w, "The given data was invalid", verr.Fields)
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			httputil.WriteUnauthorized(w, "Invalid refresh token")
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			httputil.WriteUnauthorized(w, "Refresh token expired")
		case errors.Is(err, auth.ErrUserNotFoundOrInactive):
			httputil.WriteUnauthorized(w, "User not found or inactive")
		default:
			s.internalError(w, r, err)
		}
		return
	}

	s.countTokenIssued("refresh")
	httputil.WriteSuccess(w, loginResponse{Token: bundle, User: user})
}

// logout handles POST /api/v1/auth/logout. Revokes every session the
// caller owns, not just the presented token.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := s.auth.Logout(r.Context(), authCtx.User.ID); err != nil {
		s.internalError(w, r, err)
		return
	}

	s.countTokensRevoked()
	httputil.WriteSuccessMessage(w, "Logged out", nil)
}

// register handles POST /api/v1/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), req, s.requestTenantID(r))
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			httputil.WriteUnprocessableEntity(w, "The given data was invalid", verr.Fields)
		case errors.Is(err, auth.ErrEmailTaken):
			httputil.WriteUnprocessableEntity(w, "The given data was invalid", map[string]string{
				"email": "has already been taken",
			})
		default:
			s.internalError(w, r, err)
		}
		return
	}

	httputil.WriteCreated(w, user)
}

// currentUser handles GET /api/v1/user
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	httputil.WriteSuccess(w, map[string]any{
		"user":   authCtx.User,
		"scopes": auth.ScopeStrings(authCtx.Scopes),
	})
}

// requestTenantID returns the resolved tenant's id, or empty when the
// request carries no tenant.
func (s *Server) requestTenantID(r *http.Request) string {
	if t := middleware.GetTenant(r); t != nil {
		return t.ID
	}
	return ""
}

// internalError hides the real cause unless debug mode is on.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	if s.debug {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countTokenIssued(flow string) {
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.WithLabelValues(flow).Inc()
	}
}

func (s *Server) countTokensRevoked() {
	if s.metrics != nil {
		s.metrics.TokensRevokedTotal.Inc()
	}
}
