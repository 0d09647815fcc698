package gemini

import (
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"

	"styleswap-server/modules/common/utils"
)

// ErrGenerationFailed - 응답에 inline 이미지가 없음
var ErrGenerationFailed = errors.New("generation failed")

// GenerationFailedError - 사용자에게 보여줄 메시지와 FinishReason을 함께 보관
type GenerationFailedError struct {
	UserMessage  string
	FinishReason genai.FinishReason
}

func (e *GenerationFailedError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("%s: %s (finish reason: %s)", ErrGenerationFailed, e.UserMessage, e.FinishReason)
	}
	return fmt.Sprintf("%s: %s", ErrGenerationFailed, e.UserMessage)
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// ExtractImageDataURI - 첫 번째 candidate에서 처음 나오는 inline 이미지를 data URI로 반환
func ExtractImageDataURI(resp *genai.GenerateContentResponse, failMessage string) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", &GenerationFailedError{UserMessage: failMessage}
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for i, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if extra := countInlineImages(candidate.Content.Parts[i+1:]); extra > 0 {
				log.Printf("⚠️  [Gemini] Response carried %d more image part(s), using the first one", extra)
			}
			return utils.EncodeDataURI(part.InlineData.MIMEType, part.InlineData.Data), nil
		}
	}

	// 안전 필터 등으로 막힌 경우 FinishReason 기록
	reason := candidate.FinishReason
	if reason == genai.FinishReasonUnspecified || reason == genai.FinishReasonStop {
		reason = ""
	}
	return "", &GenerationFailedError{UserMessage: failMessage, FinishReason: reason}
}

func countInlineImages(parts []*genai.Part) int {
	n := 0
	for _, part := range parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			n++
		}
	}
	return n
}
