package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"log"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp" // WebP 디코더 등록
)

const dataURIBase64Marker = ";base64,"

var ErrInvalidDataURI = errors.New("invalid data URI")

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

// EncodeDataURI - 바이너리를 data:<mime>;base64,<payload> 형태로 변환
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + dataURIBase64Marker + ConvertImageToBase64(data)
}

// ParseDataURI - data URI를 media type과 base64 payload로 분리
func ParseDataURI(dataURI string) (mimeType string, payload string, err error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return "", "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}
	header, payload, found := strings.Cut(dataURI, dataURIBase64Marker)
	if !found {
		return "", "", fmt.Errorf("%w: missing %q marker", ErrInvalidDataURI, dataURIBase64Marker)
	}
	mimeType = strings.TrimPrefix(header, "data:")
	if mimeType == "" {
		return "", "", fmt.Errorf("%w: empty media type", ErrInvalidDataURI)
	}
	return mimeType, payload, nil
}

// StripDataURIPrefix - "data:...;base64," 앞부분 제거 (payload만 반환)
func StripDataURIPrefix(dataURI string) (string, error) {
	_, payload, err := ParseDataURI(dataURI)
	return payload, err
}

// DecodeDataURI - data URI를 media type과 원본 바이트로 디코딩
func DecodeDataURI(dataURI string) (string, []byte, error) {
	mimeType, payload, err := ParseDataURI(dataURI)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}

// DetectMimeType - 선언된 타입이 없거나 octet-stream이면 내용으로 판별
func DetectMimeType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

// ImageDimensions - 헤더만 읽어서 크기 확인 (디코딩 불가 포맷이면 ok=false)
func ImageDimensions(data []byte) (width, height int, format string, ok bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Printf("🔍 [Image] Could not read dimensions (%d bytes): %v", len(data), err)
		return 0, 0, "", false
	}
	return cfg.Width, cfg.Height, format, true
}
