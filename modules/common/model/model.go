package model

import "strings"

// UploadedImage - 사용자가 선택한 이미지 (세션 안에서만 유지)
type UploadedImage struct {
	EncodedData      string `json:"-"`                // data:<mime>;base64,<payload>
	MediaType        string `json:"mediaType"`        // image/jpeg, image/png 등
	PreviewReference string `json:"previewReference"` // 미리보기용 임시 핸들
	FileName         string `json:"fileName,omitempty"`
	Size             int    `json:"size"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
}

// IsZero - 슬롯이 비어 있는지
func (u *UploadedImage) IsZero() bool {
	return u == nil || u.EncodedData == ""
}

// ProcessingStatus - idle → processing → success/error
type ProcessingStatus string

const (
	StatusIdle       ProcessingStatus = "idle"
	StatusProcessing ProcessingStatus = "processing"
	StatusSuccess    ProcessingStatus = "success"
	StatusError      ProcessingStatus = "error"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusSuccess, StatusError:
		return true
	}
	return false
}

// GeneratedResult - 생성/수정 결과 data URI
type GeneratedResult string

func (r GeneratedResult) IsEmpty() bool {
	return strings.TrimSpace(string(r)) == ""
}

func (r GeneratedResult) String() string {
	return string(r)
}
