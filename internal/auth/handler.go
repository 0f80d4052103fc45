package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"security-service/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Handler{service: service, logger: logger}
}

type twoFactorRequest struct {
	Code string `json:"code"`
}

type deleteManyRequest struct {
	IDs []string `json:"ids"`
}

type loginResponse struct {
	AuthToken
	Next *NextStep `json:"next,omitempty"`
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider := Provider(strings.ToLower(strings.TrimSpace(r.PathValue("provider"))))
	if !provider.Valid() {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	initiation, err := h.service.Initiate(r.Context(), provider)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to initiate login")
		return
	}

	writeJSON(w, http.StatusOK, initiation)
}

func (h *Handler) CheckLocal(w http.ResponseWriter, r *http.Request) {
	var body Credentials
	if !decodeBody(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if _, err := mail.ParseAddress(body.Email); err != nil {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if body.Password == "" || len(body.Password) > 200 {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	token, err := h.service.CompleteLocalLogin(r.Context(), r.PathValue("token"), body)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to login")
		return
	}

	response := loginResponse{AuthToken: token}
	if token.Status == StatusPending && token.TwoFactorEnabled {
		next := twoFactorStep(token.ID)
		response.Next = &next
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) CheckTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body twoFactorRequest
	if !decodeBody(w, r, &body) {
		return
	}

	token, err := h.service.CompleteTwoFactor(r.Context(), r.PathValue("token"), body.Code)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to verify two-factor code")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AuthToken: token})
}

func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	apiToken, err := h.service.Exchange(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to exchange token")
		return
	}

	writeJSON(w, http.StatusCreated, apiToken)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), r.Header.Get(APITokenHeader)); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "invalid api token")
			return
		}
		h.writeServiceError(w, r, err, "failed to revoke token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, _ := strconv.Atoi(query.Get("skip"))
	take, _ := strconv.Atoi(query.Get("take"))

	page, err := h.service.List(r.Context(), TokenFilter{
		Action:      Action(query.Get("action")),
		Provider:    Provider(query.Get("provider")),
		Status:      Status(query.Get("status")),
		Description: strings.TrimSpace(query.Get("description")),
	}, skip, take)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list tokens")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var body deleteManyRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	deleted, err := h.service.DeleteMany(r.Context(), body.IDs)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to delete tokens")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_count": deleted})
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Purge(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to purge tokens")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps the error taxonomy to HTTP statuses. The detailed reason
// for a credential failure stays on the token and is not echoed back.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var rejected *RejectedError
	message := fallback
	if errors.As(err, &rejected) {
		message = rejected.Message
	}

	switch {
	case errors.Is(err, ErrAccountLocked):
		writeError(w, http.StatusLocked, "account locked, please contact an administrator")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrUnsupportedProvider),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired):
		if rejected == nil {
			message = err.Error()
		}
		writeError(w, http.StatusBadRequest, message)
	default:
		observability.CaptureError(r.Context(), err)
		h.logger.FromContext(r.Context()).Error("auth_request_failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
