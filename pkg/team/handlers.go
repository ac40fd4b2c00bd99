// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package team

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	httpTypes "github.com/canonical/teams-service/internal/http/types"
	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
	"github.com/canonical/teams-service/pkg/authentication"
)

type API struct {
	service       ServiceInterface
	authenticator AuthenticatorInterface
	validator     *validator.Validate

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux *chi.Mux) {
	mux.Route("/api/v1/team", func(r chi.Router) {
		r.Use(a.authenticator.Authenticate())

		r.Post("/", a.handleCreate)
		r.Get("/", a.handleList)

		r.Post("/invitation/{invitation_id}/accept", a.handleAcceptInvitation)
		r.Put("/invitation/{invitation_id}/toggle", a.handleToggleInvitation)
		r.Delete("/invitation/{invitation_id}", a.handleRevokeInvitation)

		r.Get("/{team_id}", a.handleGet)
		r.Delete("/{team_id}", a.handleDelete)
		r.Put("/{team_id}/settings", a.handleRename)
		r.Get("/{team_id}/members", a.handleMembers)
		r.Put("/{team_id}/user/{user_id}", a.handleChangeRole)
		r.Delete("/{team_id}/user/{user_id}", a.handleRemoveMember)
		r.Post("/{team_id}/leave", a.handleLeave)
		r.Post("/{team_id}/invitations", a.handleInvite)
		r.Get("/{team_id}/invitations", a.handleListInvitations)
	})
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := new(TeamRequest)
	if !a.decode(w, r, req) {
		return
	}

	actor, _ := authentication.GetUser(r.Context())

	t, err := a.service.CreateTeam(r.Context(), actor, req.Title)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusCreated, t, a.logger)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	teams, err := a.service.ListTeams(r.Context(), actor)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, teams, a.logger)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	details, err := a.service.GetTeam(r.Context(), actor, chi.URLParam(r, "team_id"))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, details, a.logger)
}

func (a *API) handleRename(w http.ResponseWriter, r *http.Request) {
	req := new(TeamRequest)
	if !a.decode(w, r, req) {
		return
	}

	actor, _ := authentication.GetUser(r.Context())

	t, err := a.service.RenameTeam(r.Context(), actor, chi.URLParam(r, "team_id"), req.Title)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, t, a.logger)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	if err := a.service.DeleteTeam(r.Context(), actor, chi.URLParam(r, "team_id")); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	members, err := a.service.ListMembers(r.Context(), actor, chi.URLParam(r, "team_id"))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, members, a.logger)
}

func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	req := new(RoleRequest)
	if !a.decode(w, r, req) {
		return
	}

	actor, _ := authentication.GetUser(r.Context())

	m, err := a.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "team_id"), chi.URLParam(r, "user_id"), req.Role)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, m, a.logger)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	if err := a.service.RemoveMember(r.Context(), actor, chi.URLParam(r, "team_id"), chi.URLParam(r, "user_id")); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	if err := a.service.Leave(r.Context(), actor, chi.URLParam(r, "team_id")); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInvite(w http.ResponseWriter, r *http.Request) {
	req := new(InviteRequest)
	if !a.decode(w, r, req) {
		return
	}

	actor, _ := authentication.GetUser(r.Context())

	inv, err := a.service.Invite(r.Context(), actor, chi.URLParam(r, "team_id"), req.Email, req.Role, req.TTL())
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusCreated, inv, a.logger)
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	page, size, err := pagination(r)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	actor, _ := authentication.GetUser(r.Context())

	invitations, err := a.service.ListInvitations(r.Context(), actor, chi.URLParam(r, "team_id"), page, size)
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WritePage(w, invitations, page, size, a.logger)
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	m, err := a.service.AcceptInvitation(r.Context(), actor, chi.URLParam(r, "invitation_id"))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, m, a.logger)
}

func (a *API) handleToggleInvitation(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	inv, err := a.service.ToggleInvitation(r.Context(), actor, chi.URLParam(r, "invitation_id"))
	if err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	httpTypes.WriteJSON(w, http.StatusOK, inv, a.logger)
}

func (a *API) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	actor, _ := authentication.GetUser(r.Context())

	if err := a.service.RevokeInvitation(r.Context(), actor, chi.URLParam(r, "invitation_id")); err != nil {
		httpTypes.WriteError(w, err, a.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

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

func pagination(r *http.Request) (int64, int64, error) {
	page, size := int64(1), int64(0)

	for name, dst := range map[string]*int64{"page": &page, "size": &size} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}

		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("%s must be a non negative integer: %w", name, types.ErrInvalid)
		}
		*dst = v
	}

	return page, size, nil
}

func NewAPI(
	service ServiceInterface,
	authenticator AuthenticatorInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *API {
	a := new(API)

	a.service = service
	a.authenticator = authenticator
	a.validator = httpTypes.NewValidator()

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
