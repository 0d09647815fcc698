package web

import (
	"embed"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

//go:embed static/index.html
var static embed.FS

// Handler - 단일 페이지 UI
type Handler struct {
	page []byte
}

func NewHandler() (*Handler, error) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		return nil, err
	}
	return &Handler{page: page}, nil
}

// RegisterRoutes - "/" 에 UI 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.serveIndex).Methods("GET")
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.page); err != nil {
		log.Printf("⚠️  [Web] Failed to write index: %v", err)
	}
}
