package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/services"
)

func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == (common.Address{}) {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	challenge, err := h.auth.Challenge(r.Context(), req.Address)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == (common.Address{}) || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "address and signature are required")
		return
	}

	resp, err := h.auth.Login(r.Context(), services.LoginRequest{
		Address:   req.Address,
		Signature: req.Signature,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		Address:   resp.Address,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll ends every session of the token's address.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if err := h.auth.LogoutAll(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDeployments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deployments)
}
