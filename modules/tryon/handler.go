package tryon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"styleswap-server/modules/common/utils"
	"styleswap-server/modules/intake"
)

// Handler - try-on HTTP API
type Handler struct {
	manager          *SessionManager
	maxUploadBytes   int64
	downloadFileName string
}

func NewHandler(manager *SessionManager, maxUploadBytes int64, downloadFileName string) *Handler {
	if downloadFileName == "" {
		downloadFileName = "benim-tarzim.png"
	}
	return &Handler{
		manager:          manager,
		maxUploadBytes:   maxUploadBytes,
		downloadFileName: downloadFileName,
	}
}

// RegisterRoutes - try-on 엔드포인트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/tryon").Subrouter()

	api.HandleFunc("/sessions", h.handleCreateSession).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}", h.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/images/{slot}", h.handleUploadImage).Methods("PUT", "OPTIONS")
	api.HandleFunc("/sessions/{id}/images/{slot}", h.handleClearImage).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/previews/{ref}", h.handlePreview).Methods("GET")
	api.HandleFunc("/sessions/{id}/tryon", h.handleTryOn).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/prompt", h.handleSetPrompt).Methods("PUT", "OPTIONS")
	api.HandleFunc("/sessions/{id}/edit", h.handleEdit).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/reset", h.handleReset).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/result", h.handleDownloadResult).Methods("GET")

	r.HandleFunc("/ws", h.HandleWebSocket)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session := h.manager.Create()
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["id"]
	if !h.manager.Delete(sessionId) {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	slot, err := ParseSlot(mux.Vars(r)["slot"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	img, err := intake.FromMultipart(w, r, h.maxUploadBytes)
	if err != nil {
		log.Printf("⚠️  [TryOn] Session %s: upload to %s rejected: %v", session.ID(), slot, err)
		status := http.StatusBadRequest
		if errors.Is(err, intake.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error(), nil)
		return
	}

	snap, err := session.SetImage(slot, img)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleClearImage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	slot, err := ParseSlot(mux.Vars(r)["slot"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	snap, err := session.ClearImage(slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	img, err := session.Preview(mux.Vars(r)["ref"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Preview not found", nil)
		return
	}

	mimeType, data, err := utils.DecodeDataURI(img.EncodedData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Preview could not be decoded", nil)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) handleTryOn(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	snap, err := session.SubmitTryOn(r.Context())
	h.writeSubmitResult(w, "try-on", snap, err)
}

func (h *Handler) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	writeJSON(w, http.StatusOK, session.SetPrompt(*req.Prompt))
}

// handleEdit - body 에 prompt 가 있으면 먼저 반영 후 편집
func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Prompt != nil {
		session.SetPrompt(*req.Prompt)
	}

	snap, err := session.SubmitEdit(r.Context())
	h.writeSubmitResult(w, "edit", snap, err)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Reset())
}

func (h *Handler) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	result, err := session.Result()
	if err != nil {
		writeError(w, http.StatusNotFound, "No result to download", nil)
		return
	}

	mimeType, data, err := utils.DecodeDataURI(result.String())
	if err != nil {
		log.Printf("❌ [TryOn] Session %s: stored result is not a valid data URI: %v", session.ID(), err)
		writeError(w, http.StatusInternalServerError, "Result could not be decoded", nil)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.downloadFileName))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeSubmitResult - 생성 요청 결과를 HTTP 상태로 매핑
func (h *Handler) writeSubmitResult(w http.ResponseWriter, kind string, snap Snapshot, err error) {
	var validationErr *ValidationError
	switch {
	case err == nil:
		h.manager.RecordRequest(kind, false)
		writeJSON(w, http.StatusOK, snap)
		return
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, validationErr.Message, &snap)
		return
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error(), &snap)
		return
	}

	h.manager.RecordRequest(kind, true)
	writeError(w, http.StatusBadGateway, snap.ErrorMessage, &snap)
}

func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sessionId := mux.Vars(r)["id"]
	session, ok := h.manager.Get(sessionId)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, snap *Snapshot) {
	writeJSON(w, status, ErrorResponse{Error: message, Snapshot: snap})
}
