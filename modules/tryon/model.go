package tryon

import (
	"errors"
	"fmt"
	"time"

	"styleswap-server/modules/common/model"
)

// Slot - 업로드 슬롯 (인물 / 의상)
type Slot string

const (
	SlotBody   Slot = "body"
	SlotOutfit Slot = "outfit"
)

func ParseSlot(raw string) (Slot, error) {
	switch Slot(raw) {
	case SlotBody, SlotOutfit:
		return Slot(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, raw)
}

// 사용자에게 보여지는 메시지
const (
	ValidationMessage   = "Lütfen hem kendi fotoğrafınızı hem de kıyafet fotoğrafını yükleyin."
	GenericErrorMessage = "Bir hata oluştu. Lütfen tekrar deneyin."
	EditErrorMessage    = "Düzenleme sırasında bir hata oluştu."
)

// DefaultStatusMessages - processing 동안 2초마다 순환하는 상태 문구
var DefaultStatusMessages = []string{
	"Vücut hatları analiz ediliyor...",
	"Kumaş dokusu işleniyor...",
	"Işık ve gölge dengeleniyor...",
	"Kıyafet vücuda dikiliyor...",
	"Son dokunuşlar yapılıyor...",
}

var (
	ErrBusy          = errors.New("a request is already in progress")
	ErrSuperseded    = errors.New("session was reset while the request was in flight")
	ErrUnknownSlot   = errors.New("unknown image slot")
	ErrNoResult      = errors.New("no generated result")
	ErrNoSuchPreview = errors.New("preview not found")
)

// ValidationError - 필수 입력 누락 (네트워크 호출 없음)
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

// ImageView - 클라이언트에 내려주는 업로드 이미지 정보 (base64 본문 제외)
type ImageView struct {
	MediaType  string `json:"mediaType"`
	PreviewURL string `json:"previewUrl"`
	FileName   string `json:"fileName,omitempty"`
	Size       int    `json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// Snapshot - 세션 상태 복사본
type Snapshot struct {
	SessionID     string                 `json:"sessionId"`
	Status        model.ProcessingStatus `json:"status"`
	ErrorMessage  string                 `json:"errorMessage,omitempty"`
	StatusMessage string                 `json:"statusMessage,omitempty"`
	Body          *ImageView             `json:"body,omitempty"`
	Outfit        *ImageView             `json:"outfit,omitempty"`
	ResultImage   string                 `json:"resultImage,omitempty"`
	ResultURL     string                 `json:"resultUrl,omitempty"`
	Prompt        string                 `json:"prompt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// EventType - websocket으로 push 되는 이벤트 종류
type EventType string

const (
	EventState         EventType = "state"
	EventStatusMessage EventType = "status_message"
)

type Event struct {
	Type          EventType              `json:"type"`
	SessionID     string                 `json:"sessionId"`
	Status        model.ProcessingStatus `json:"status,omitempty"`
	StatusMessage string                 `json:"statusMessage,omitempty"`
	Snapshot      *Snapshot              `json:"snapshot,omitempty"`
}

// PromptRequest - PUT /prompt, POST /edit 요청
type PromptRequest struct {
	Prompt *string `json:"prompt"`
}

// ErrorResponse - 에러 응답 (가능하면 현재 상태 포함)
type ErrorResponse struct {
	Error    string    `json:"error"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}
