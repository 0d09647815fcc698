package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"styleswap-server/modules/common/config"
	"styleswap-server/modules/common/gemini"
	"styleswap-server/modules/common/genaiclient"
	"styleswap-server/modules/tryon"
	"styleswap-server/modules/web"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "styleswap-tryon",
	})
}

// 서버 메트릭 조회 엔드포인트
func metricsHandler(manager *tryon.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(manager.Metrics())
	}
}

// newRouter - 라우트 구성
func newRouter(manager *tryon.SessionManager, cfg *config.Config) (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(manager)).Methods("GET")

	tryon.NewHandler(manager, cfg.MaxUploadBytes, cfg.DownloadFileName).RegisterRoutes(r)

	webHandler, err := web.NewHandler()
	if err != nil {
		return nil, err
	}
	webHandler.RegisterRoutes(r)

	return r, nil
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GenAI 클라이언트 + composer
	client, err := genaiclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create GenAI client: %v", err)
	}
	composer, err := gemini.NewComposer(client.Models, cfg.GeminiModel, cfg.AspectRatio)
	if err != nil {
		log.Fatalf("❌ Failed to create composer: %v", err)
	}

	manager := tryon.NewSessionManager(tryon.SessionConfig{
		Composer:       composer,
		StatusMessages: tryon.DefaultStatusMessages,
		TickInterval:   cfg.StatusTickInterval,
		RequestTimeout: cfg.RequestTimeout,
	}, cfg.SessionIdleTTL)

	// 정리 루틴 시작
	manager.StartCleanupRoutine(ctx, cfg.SessionCleanupInterval)

	r, err := newRouter(manager, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to build router: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🚀 StyleSwap Try-On Server starting on port %s", cfg.Port)
	log.Printf("🖥️  UI: http://localhost:%s/", cfg.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws?session={id}", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// 서버 시작
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Graceful shutdown failed: %v", err)
	}
	log.Printf("👋 Server stopped")
}
