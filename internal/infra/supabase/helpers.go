package supabase

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// APIError is a non-2xx answer from Supabase. Message is the backend's own
// text, suitable for showing to an operator.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError extracts the message from a PostgREST or GoTrue error body.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Code             any    `json:"code"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = firstNonEmpty(payload.Message, payload.Msg, payload.ErrorDescription)
		if payload.Code != nil {
			apiErr.Code = fmt.Sprint(payload.Code)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("supabase returned status %d", status)
	}
	return apiErr
}

// eq builds a PostgREST equality filter with the value escaped.
func eq(column, value string) string {
	return column + "=eq." + url.QueryEscape(value)
}

// decodeFirst decodes a PostgREST array answer and returns its first row.
func decodeFirst[T any](body []byte, what string) (*T, error) {
	if len(body) == 0 || string(body) == "[]" {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
