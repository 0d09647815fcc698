package intake

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"styleswap-server/modules/common/model"
	"styleswap-server/modules/common/utils"
)

const FormField = "file"

var (
	ErrEmptyFile    = errors.New("uploaded file is empty")
	ErrFileTooLarge = errors.New("uploaded file is too large")
)

// FromBytes - 원본 바이트를 UploadedImage로 변환 (data URI + preview 핸들)
func FromBytes(fileName, declaredType string, data []byte) (model.UploadedImage, error) {
	if len(data) == 0 {
		return model.UploadedImage{}, ErrEmptyFile
	}

	mimeType := utils.DetectMimeType(declaredType, data)
	img := model.UploadedImage{
		EncodedData:      utils.EncodeDataURI(mimeType, data),
		MediaType:        mimeType,
		PreviewReference: uuid.NewString(),
		FileName:         fileName,
		Size:             len(data),
	}

	if w, h, _, ok := utils.ImageDimensions(data); ok {
		img.Width, img.Height = w, h
	}

	log.Printf("📷 [Intake] %s accepted: %s, %d bytes, %dx%d", fileName, mimeType, len(data), img.Width, img.Height)
	return img, nil
}

// FromMultipart - multipart 폼의 "file" 필드에서 UploadedImage 생성
func FromMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (model.UploadedImage, error) {
	// multipart 오버헤드 여유분
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	file, header, err := r.FormFile(FormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.UploadedImage{}, ErrFileTooLarge
		}
		return model.UploadedImage{}, fmt.Errorf("read form file %q: %w", FormField, err)
	}
	defer file.Close()

	if header.Size > maxBytes {
		return model.UploadedImage{}, ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return model.UploadedImage{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return model.UploadedImage{}, ErrFileTooLarge
	}

	return FromBytes(header.Filename, header.Header.Get("Content-Type"), data)
}
