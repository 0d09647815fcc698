package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"styleswap-server/modules/common/model"
	"styleswap-server/modules/common/utils"
)

const (
	TryOnFailedMessage = "Görsel oluşturulamadı. Lütfen daha net fotoğraflar deneyin."
	EditFailedMessage  = "Düzenleme başarısız oldu."
)

// ImageComposer - 외부 이미지 모델 추상화 (합성, 수정)
type ImageComposer interface {
	Compose(ctx context.Context, body, outfit model.UploadedImage) (string, error)
	Refine(ctx context.Context, baseImage string, instruction string) (string, error)
}

// ContentGenerator - *genai.Models 가 만족하는 최소 인터페이스
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Composer - Gemini 이미지 모델 기반 ImageComposer
type Composer struct {
	models      ContentGenerator
	model       string
	aspectRatio string
}

var _ ImageComposer = (*Composer)(nil)

func NewComposer(models ContentGenerator, modelName, aspectRatio string) (*Composer, error) {
	if models == nil {
		return nil, fmt.Errorf("models (ContentGenerator) is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &Composer{
		models:      models,
		model:       modelName,
		aspectRatio: aspectRatio,
	}, nil
}

// Compose - 인물 + 의상 이미지를 합성
func (c *Composer) Compose(ctx context.Context, body, outfit model.UploadedImage) (string, error) {
	bodyPart, err := uploadedImagePart(body)
	if err != nil {
		return "", fmt.Errorf("body image: %w", err)
	}
	outfitPart, err := uploadedImagePart(outfit)
	if err != nil {
		return "", fmt.Errorf("outfit image: %w", err)
	}

	parts := []*genai.Part{
		bodyPart,
		outfitPart,
		genai.NewPartFromText(TryOnInstruction),
	}

	var cfg *genai.GenerateContentConfig
	if c.aspectRatio != "" {
		cfg = &genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: c.aspectRatio},
		}
	}

	log.Printf("🎨 [Gemini] Try-on request - model: %s, ratio: %s, body: %s (%d bytes), outfit: %s (%d bytes)",
		c.model, c.aspectRatio, bodyPart.InlineData.MIMEType, len(bodyPart.InlineData.Data),
		outfitPart.InlineData.MIMEType, len(outfitPart.InlineData.Data))

	return c.generate(ctx, "try-on", parts, cfg, TryOnFailedMessage)
}

// Refine - 기존 결과 이미지에 자유 텍스트 수정 적용
func (c *Composer) Refine(ctx context.Context, baseImage string, instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", fmt.Errorf("refine instruction is required")
	}

	mimeType, data, err := utils.DecodeDataURI(baseImage)
	if err != nil {
		return "", fmt.Errorf("base image: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(RefineInstruction(instruction)),
	}

	log.Printf("✏️  [Gemini] Refine request - model: %s, image: %s (%d bytes), prompt: %s",
		c.model, mimeType, len(data), truncateString(instruction, 50))

	return c.generate(ctx, "refine", parts, nil, EditFailedMessage)
}

func (c *Composer) generate(ctx context.Context, op string, parts []*genai.Part, cfg *genai.GenerateContentConfig, failMessage string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	started := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if isRateLimitError(err) {
			log.Printf("⚠️  [Gemini] %s hit rate limit (429)", op)
		}
		log.Printf("❌ [Gemini] %s API error after %s: %v", op, time.Since(started).Round(time.Millisecond), err)
		return "", fmt.Errorf("gemini %s request: %w", op, err)
	}

	result, err := ExtractImageDataURI(resp, failMessage)
	if err != nil {
		log.Printf("❌ [Gemini] %s returned no image: %v", op, err)
		return "", err
	}

	log.Printf("✅ [Gemini] %s image generated in %s (%d chars)", op, time.Since(started).Round(time.Millisecond), len(result))
	return result, nil
}

// uploadedImagePart - data URI 접두사 제거 후 inline blob 생성
func uploadedImagePart(img model.UploadedImage) (*genai.Part, error) {
	headerMime, payload, err := utils.ParseDataURI(img.EncodedData)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload: %v", utils.ErrInvalidDataURI, err)
	}

	mimeType := img.MediaType
	if mimeType == "" {
		mimeType = headerMime
	}
	return genai.NewPartFromBytes(data, mimeType), nil
}

// isRateLimitError - 429 Rate Limit 에러인지 확인
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
