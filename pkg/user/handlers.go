// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package user

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
	"github.com/canonical/teams-service/pkg/authentication"
)

// Limits caps the unauthenticated endpoints that cost a password check or a mail
type Limits struct {
	Login    int
	CodeSend int
	Window   time.Duration
}

type API struct {
	service       ServiceInterface
	authenticator AuthenticatorInterface
	limiter       RateLimiterInterface
	limits        Limits
	validator     *validator.Validate
	secureCookies bool

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux *chi.Mux) {
	mux.Route("/api/v1/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.limiter.Middleware("login", a.limits.Login, a.limits.Window))
			r.Post("/auth", a.handleLogin)
			r.Post("/auth/refresh", a.handleRefresh)
		})

		r.With(a.limiter.Middleware("register", a.limits.CodeSend, a.limits.Window)).
			Post("/", a.handleRegister)
		r.With(a.limiter.Middleware("password_reset_send", a.limits.CodeSend, a.limits.Window)).
			Post("/password/reset/send", a.handlePasswordResetSend)

		r.Post("/verify", a.handleVerify)
		r.Post("/password/reset", a.handlePasswordReset)
		r.Post("/settings/email/confirm", a.handleConfirmEmail)
		r.Post("/logout", a.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticator.Authenticate())
			r.Get("/me", a.handleMe)
			r.Patch("/settings", a.handleSettings)
			r.Patch("/appearance", a.handleAppearance)
			r.With(a.limiter.Middleware("verify_send", a.limits.CodeSend, a.limits.Window)).
				Post("/verify/send", a.handleVerifySend)
			r.Get("/{user_id}", a.handleProfile)
		})
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := new(RegisterRequest)
	if !a.decode(w, r, req) {
		return
	}

	u, err := a.service.Register(r.Context(), req)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusCreated, u, a.logger)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	req := new(LoginRequest)
	if !a.decode(w, r, req) {
		return
	}

	session, err := a.service.Login(r.Context(), req.Login, req.Password, remoteIP(r))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	authentication.SetAccessCookie(w, session.AccessToken, session.ExpiresAt, a.secureCookies)
	httpTypes.WriteJSON(w, http.StatusOK, session, a.logger)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req := new(RefreshRequest)
	if !a.decode(w, r, req) {
		return
	}

	session, err := a.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	authentication.SetAccessCookie(w, session.AccessToken, session.ExpiresAt, a.secureCookies)
	httpTypes.WriteJSON(w, http.StatusOK, session, a.logger)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	req := new(RefreshRequest)
	if !a.decode(w, r, req) {
		return
	}

	// the cookie goes regardless, a stale refresh token is not the client's problem
	authentication.ClearAccessCookie(w, a.secureCookies)

	if err := a.service.Logout(r.Context(), req.RefreshToken); err != nil {
		a.logger.Debugf("logout with unusable refresh token: %v", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, u, a.logger)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := a.service.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(
		w,
		http.StatusOK,
		Profile{ID: u.ID, Login: u.Login, FirstName: u.FirstName, LastName: u.LastName},
		a.logger,
	)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	req := new(SettingsRequest)
	if !a.decode(w, r, req) {
		return
	}

	updated, err := a.service.UpdateSettings(r.Context(), u, req)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, updated, a.logger)
}

func (a *API) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	req := new(TokenRequest)
	if !a.decode(w, r, req) {
		return
	}

	updated, err := a.service.ConfirmEmailChange(r.Context(), req.Token)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, updated, a.logger)
}

func (a *API) handleAppearance(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	req := new(AppearanceRequest)
	if !a.decode(w, r, req) {
		return
	}

	updated, err := a.service.UpdateAppearance(
		r.Context(),
		u.ID,
		types.Appearance{ThemeIsLight: req.ThemeIsLight, MainColorHex: req.MainColorHex},
	)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, updated, a.logger)
}

func (a *API) handleVerifySend(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	if err := a.service.SendVerification(r.Context(), u); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	req := new(TokenRequest)
	if !a.decode(w, r, req) {
		return
	}

	if err := a.service.Verify(r.Context(), req.Token); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePasswordResetSend(w http.ResponseWriter, r *http.Request) {
	req := new(PasswordResetSendRequest)
	if !a.decode(w, r, req) {
		return
	}

	if err := a.service.SendPasswordReset(r.Context(), req.Email); err != nil {
		a.logger.Errorf("failed to send password reset: %v", err)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	req := new(PasswordResetRequest)
	if !a.decode(w, r, req) {
		return
	}

	if err := a.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates the body, writing the error response itself
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpTypes.DecodeJSON(r, dst); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return false
	}

	if err := a.validator.Struct(dst); err != nil {
		httpTypes.WriteError(w, httpTypes.ValidationError(err), a.logger)
		return false
	}

	return true
}

func (a *API) currentUser(w http.ResponseWriter, r *http.Request) (*types.User, bool) {
	u, ok := authentication.GetUser(r.Context())
	if !ok {
		httpTypes.WriteError(w, types.ErrUnauthenticated, a.logger)
		return nil, false
	}
	return u, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func NewAPI(
	service ServiceInterface,
	authenticator AuthenticatorInterface,
	limiter RateLimiterInterface,
	limits Limits,
	secureCookies bool,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *API {
	a := new(API)

	a.service = service
	a.authenticator = authenticator
	a.limiter = limiter
	a.limits = limits
	a.validator = httpTypes.NewValidator()
	a.secureCookies = secureCookies

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
