package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/boddenberg/zillo-assist-go/internal/login"
	"github.com/boddenberg/zillo-assist-go/internal/port"
	"github.com/boddenberg/zillo-assist-go/internal/sanitize"
	"github.com/boddenberg/zillo-assist-go/internal/service"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Login wizard: /sistema
// ============================================================

// flowRegistry keeps one wizard per client. Each access refreshes the
// cache entry, so an idle wizard expires after the cache TTL.
type flowRegistry struct {
	mu       sync.Mutex
	flows    port.Cache[*login.Flow]
	auth     login.Authenticator
	sessions *session.Registry
	opts     []login.FlowOption
}

func (fr *flowRegistry) get(ctx context.Context, clientID string) *login.Flow {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	f, ok := fr.flows.Get(clientID)
	if !ok {
		f = login.NewFlow(ctx, fr.auth, fr.sessions.For(clientID), fr.opts...)
	}
	fr.flows.Set(clientID, f)
	return f
}

func (fr *flowRegistry) drop(clientID string) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.flows.Delete(clientID)
}

type redirectView struct {
	To      string `json:"to"`
	AfterMs int64  `json:"afterMs"`
}

// wizardView is what the login page renders. The password never leaves
// the server.
type wizardView struct {
	Stage         string        `json:"stage"`
	CNPJ          string        `json:"cnpj"`
	Username      string        `json:"username"`
	HasPassword   bool          `json:"hasPassword"`
	Remember      bool          `json:"remember"`
	Error         string        `json:"error,omitempty"`
	Busy          bool          `json:"busy"`
	Authenticated bool          `json:"authenticated,omitempty"`
	Redirect      *redirectView `json:"redirect,omitempty"`
}

func newWizardView(snap login.Snapshot) wizardView {
	v := wizardView{
		Stage:       snap.State.Stage.String(),
		CNPJ:        snap.State.CNPJ,
		Username:    snap.State.Username,
		HasPassword: snap.State.Password != "",
		Remember:    snap.State.Remember,
		Error:       snap.State.Error,
		Busy:        snap.State.Busy,
	}
	if snap.Redirect != nil {
		v.Redirect = &redirectView{To: snap.Redirect.To, AfterMs: snap.Redirect.After.Milliseconds()}
	}
	return v
}

func writeWizard(w http.ResponseWriter, snap login.Snapshot, err error) {
	if errors.Is(err, login.ErrBusy) {
		writeJSON(w, http.StatusConflict, newWizardView(snap))
		return
	}
	writeJSON(w, http.StatusOK, newWizardView(snap))
}

// wizardViewHandler serves the mount of the login page. A mount is a full
// reload, so the wizard starts over at the CNPJ stage.
func wizardViewHandler(flows *flowRegistry, sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientIDFromContext(r.Context())
		view := newWizardView(flows.get(r.Context(), clientID).Reset(r.Context()))
		view.Authenticated = sessions.For(clientID).IsValid(r.Context())
		writeJSON(w, http.StatusOK, view)
	}
}

type inputRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func wizardInputHandler(flows *flowRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inputRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		field := login.Field(req.Field)
		value := req.Value
		switch field {
		case login.FieldCNPJ:
			value = sanitize.Text(value)
		case login.FieldUsername:
			value = sanitize.Username(value)
		case login.FieldPassword, login.FieldRemember:
		default:
			logger.Debug("wizard: unknown field", zap.String("field", req.Field))
			writeError(w, http.StatusBadRequest, "unknown field")
			return
		}

		snap, err := flows.get(r.Context(), ClientIDFromContext(r.Context())).Input(field, value)
		writeWizard(w, snap, err)
	}
}

func wizardNextHandler(flows *flowRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /sistema/next")
		defer span.End()

		flow := flows.get(ctx, ClientIDFromContext(ctx))
		span.SetAttributes(attribute.String("login.stage", flow.Snapshot().State.Stage.String()))

		snap, err := flow.Forward(ctx)
		if err == nil && snap.State.Error != "" {
			logger.Debug("wizard: step rejected",
				zap.String("stage", snap.State.Stage.String()),
				zap.String("reason", snap.State.Error),
			)
		}
		writeWizard(w, snap, err)
	}
}

func wizardBackHandler(flows *flowRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := flows.get(r.Context(), ClientIDFromContext(r.Context())).Back()
		writeWizard(w, snap, err)
	}
}

func wizardResetHandler(flows *flowRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := flows.get(r.Context(), ClientIDFromContext(r.Context())).Reset(r.Context())
		writeWizard(w, snap, nil)
	}
}

func logoutHandler(flows *flowRegistry, sessions *session.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientIDFromContext(r.Context())
		if err := sessions.For(clientID).Clear(r.Context()); err != nil {
			logger.Error("logout: clear session failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		flows.drop(clientID)
		writeJSON(w, http.StatusOK, redirectResponse{Redirect: "/sistema"})
	}
}

type recoverRequest struct {
	Email string `json:"email"`
}

// recoverPasswordHandler answers the same way whether or not the account
// exists; only a malformed address is rejected.
func recoverPasswordHandler(auth *service.AuthClient, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /sistema/recuperar-senha")
		defer span.End()

		var req recoverRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		email := sanitize.Email(req.Email)
		if email == "" {
			writeError(w, http.StatusBadRequest, "Informe um e-mail válido.")
			return
		}

		auth.RecoverPassword(ctx, email)
		logger.Debug("recovery requested")
		writeJSON(w, http.StatusOK, map[string]string{"message": "recovery email sent"})
	}
}
