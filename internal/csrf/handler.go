package csrf

import "net/http"

type Handler struct {
	tokens *Service
	userID func(*http.Request) string
}

func NewHandler(tokens *Service, userID func(*http.Request) string) *Handler {
	return &Handler{tokens: tokens, userID: userID}
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": h.tokens.Generate(userID)})
}
