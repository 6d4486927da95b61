package handlers

import (
	"net/http"

	"github.com/prudhvinik1/cipherchat/internal/models"
)

func (h *Handler) GetAllMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	messages, err := h.contract.GetAllMessages(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessagesResponse{Messages: messages})
}

func (h *Handler) GetMessageCount(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	count, err := h.contract.GetMessageCount(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CountResponse{Count: count})
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	user, index, ok := userAndIndex(w, r)
	if !ok {
		return
	}

	message, err := h.contract.GetMessage(r.Context(), user, index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (h *Handler) GetMessageMetadata(w http.ResponseWriter, r *http.Request) {
	user, index, ok := userAndIndex(w, r)
	if !ok {
		return
	}

	metadata, err := h.contract.GetMessageMetadata(r.Context(), user, index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metadata)
}

func (h *Handler) GetEncryptedContent(w http.ResponseWriter, r *http.Request) {
	user, index, ok := userAndIndex(w, r)
	if !ok {
		return
	}

	content, err := h.contract.GetEncryptedContent(r.Context(), user, index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ContentResponse{EncryptedContent: content})
}

func (h *Handler) StoreMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.contract.StoreMessage(r.Context(), callerFrom(r.Context()), req.EncryptedContent)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) StoreResponse(w http.ResponseWriter, r *http.Request) {
	var req models.ContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.contract.StoreResponse(r.Context(), callerFrom(r.Context()), req.EncryptedContent)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.contract.ClearMessages(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) RequestDecryption(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.contract.RequestDecryption(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
