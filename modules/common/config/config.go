package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// GenAI
	GenAIBackend string
	GeminiAPIKey string
	GeminiModel  string

	// Vertex AI (GENAI_BACKEND=vertex 일 때만 사용)
	VertexProject         string
	VertexLocation        string
	VertexCredentialsJSON string
	VertexCredentialsPath string

	// Try-on
	AspectRatio        string
	StatusTickInterval time.Duration
	RequestTimeout     time.Duration
	MaxUploadBytes     int64
	DownloadFileName   string

	// Session
	SessionIdleTTL         time.Duration
	SessionCleanupInterval time.Duration

	// Server
	Port string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	globalConfig = cfg

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   GenAI: backend=%s, model=%s", cfg.GenAIBackend, cfg.GeminiModel)
	log.Printf("   Try-on: aspect=%s, tick=%s, timeout=%s", cfg.AspectRatio, cfg.StatusTickInterval, cfg.RequestTimeout)
	log.Printf("   Sessions: idle ttl=%s, cleanup every %s", cfg.SessionIdleTTL, cfg.SessionCleanupInterval)

	return globalConfig, nil
}

// FromEnv - .env 로드 없이 현재 프로세스 환경변수만으로 Config 생성
func FromEnv() (*Config, error) {
	cfg := &Config{
		GenAIBackend: strings.ToLower(getEnv("GENAI_BACKEND", BackendGemini)),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		VertexProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexLocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexCredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		AspectRatio:        getEnv("TRYON_ASPECT_RATIO", "1:1"),
		StatusTickInterval: getDuration("STATUS_TICK_INTERVAL", 2*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 120*time.Second),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_MB", 20)) << 20,
		DownloadFileName:   getEnv("DOWNLOAD_FILENAME", "benim-tarzim.png"),

		SessionIdleTTL:         getDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SessionCleanupInterval: getDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),

		// Render.com 등은 PORT 환경변수 사용
		Port: getEnv("PORT", "8080"),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	switch c.GenAIBackend {
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case BackendVertex:
		if c.VertexProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required when GENAI_BACKEND=vertex")
		}
	default:
		return fmt.Errorf("unknown GENAI_BACKEND %q (want %q or %q)", c.GenAIBackend, BackendGemini, BackendVertex)
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	if c.StatusTickInterval <= 0 {
		return fmt.Errorf("STATUS_TICK_INTERVAL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, raw, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, raw, defaultValue)
	}
	return defaultValue
}

// Addr - 서버 listen 주소
func (c *Config) Addr() string {
	return ":" + c.Port
}
