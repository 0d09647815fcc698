package genaiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"styleswap-server/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// New - 설정에 맞는 backend로 genai 클라이언트 생성
func New(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	clientConfig, err := clientConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Printf("✅ [GenAI] Client initialized (backend=%s, model=%s)", cfg.GenAIBackend, cfg.GeminiModel)
	return client, nil
}

func clientConfigFor(cfg *config.Config) (*genai.ClientConfig, error) {
	if cfg.GenAIBackend != config.BackendVertex {
		return &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		}, nil
	}

	creds, err := vertexCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     cfg.VertexProject,
		Location:    cfg.VertexLocation,
		Credentials: creds,
	}, nil
}

// vertexCredentials - Vertex AI 인증 정보 (JSON env → 파일 → ADC 순서)
func vertexCredentials(cfg *config.Config) (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{
		Scopes: []string{cloudPlatformScope},
	}

	if cfg.VertexCredentialsJSON != "" {
		// 1. VERTEXAI_CREDENTIALS_JSON (Render 배포용)
		log.Println("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		opts.CredentialsJSON = []byte(cfg.VertexCredentialsJSON)
	} else if cfg.VertexCredentialsPath != "" {
		// 2. VERTEXAI_CREDENTIALS_PATH (로컬 테스트용)
		log.Printf("✅ [VertexAI] Using credentials from file: %s", cfg.VertexCredentialsPath)
		credsData, err := os.ReadFile(cfg.VertexCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		opts.CredentialsJSON = credsData
	} else {
		// 3. Application Default Credentials
		log.Println("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	}

	if len(opts.CredentialsJSON) > 0 && !json.Valid(opts.CredentialsJSON) {
		return nil, fmt.Errorf("invalid JSON credentials")
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect Vertex AI credentials: %w", err)
	}
	return creds, nil
}
