package handler

import (
	"net/http"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/sanitize"
	"github.com/boddenberg/zillo-assist-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// REST auth fallback: /api/auth/*
// ============================================================

// A negative identify or check-user answers 404 with exists=false; a
// rejected login answers 401 with the reason in "message".

func apiIdentifyHandler(identity *service.AccountIdentity, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/identify")
		defer span.End()

		var req domain.IdentifyRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := identity.IdentifyCompany(ctx, sanitize.Text(req.CNPJ))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if !res.Exists {
			writeJSON(w, http.StatusNotFound, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func apiCheckUserHandler(identity *service.AccountIdentity, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/check-user")
		defer span.End()

		var req domain.CheckUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := identity.CheckUsername(ctx, sanitize.Text(req.CNPJ), sanitize.Username(req.Username))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if !res.Exists {
			writeJSON(w, http.StatusNotFound, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func apiLoginHandler(identity *service.AccountIdentity, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := identity.Authenticate(ctx, sanitize.Text(req.CNPJ), sanitize.Username(req.Username), req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if res.Token == "" {
			writeJSON(w, http.StatusUnauthorized, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func apiRecoverHandler(identity *service.AccountIdentity, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/recover")
		defer span.End()

		var req domain.RecoverRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := identity.RecoverPassword(ctx, sanitize.Email(req.Email)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "recovery email sent"})
	}
}
