package handler

import (
	"net/http"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/sanitize"
	"github.com/boddenberg/zillo-assist-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// CRM: company directory, admin only
// ============================================================

// The CRM always operates on the company of the logged-in admin; a CNPJ
// in the request body is ignored.

type crmHome struct {
	CompanyCNPJ string        `json:"companyCnpj"`
	UserName    string        `json:"userName"`
	Roles       []domain.Role `json:"roles"`
}

func crmHomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, crmHome{
			CompanyCNPJ: sess.CompanyCNPJ,
			UserName:    sess.UserName,
			Roles:       domain.Roles,
		})
	}
}

// userCard is a directory user as the CRM lists it.
type userCard struct {
	domain.DirectoryUser
	StatusColor service.Color `json:"statusColor"`
}

func listUsersHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /crm/users")
		defer span.End()

		sess := SessionFromContext(ctx)
		span.SetAttributes(attribute.String("company.cnpj", sess.CompanyCNPJ))

		users, err := dir.ListUsers(ctx, sess.CompanyCNPJ)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cards := make([]userCard, 0, len(users))
		for _, u := range users {
			cards = append(cards, userCard{DirectoryUser: u, StatusColor: service.StatusColor(u)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": cards, "total": len(cards)})
	}
}

func registerUserHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /crm/users")
		defer span.End()

		var req domain.RegisterUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.CompanyCNPJ = SessionFromContext(ctx).CompanyCNPJ
		req.Username = sanitize.Username(req.Username)
		req.DisplayName = sanitize.Text(req.DisplayName)
		req.Email = sanitize.Email(req.Email)
		req.Phone = sanitize.Digits(req.Phone)
		req.Address = sanitize.Text(req.Address)
		req.AddressNumber = sanitize.Text(req.AddressNumber)
		req.PhotoURL = sanitize.Text(req.PhotoURL)

		id, err := dir.RegisterUser(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "Usuário cadastrado", ID: id})
	}
}

func updateUserHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /crm/users/{userId}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var patch domain.UserPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		cleanPatch(&patch)

		user, err := dir.UpdateUser(ctx, SessionFromContext(ctx).CompanyCNPJ, userID, &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, userCard{DirectoryUser: *user, StatusColor: service.StatusColor(*user)})
	}
}

func deleteUserHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /crm/users/{userId}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if err := dir.DeleteUser(ctx, SessionFromContext(ctx).CompanyCNPJ, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cleanPatch(p *domain.UserPatch) {
	text := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := sanitize.Text(*s)
		return &v
	}
	p.DisplayName = text(p.DisplayName)
	p.Address = text(p.Address)
	p.AddressNumber = text(p.AddressNumber)
	p.PhotoURL = text(p.PhotoURL)
	if p.Email != nil {
		v := sanitize.Email(*p.Email)
		p.Email = &v
	}
	if p.Phone != nil {
		v := sanitize.Digits(*p.Phone)
		p.Phone = &v
	}
}
