package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncodeDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,WA==", EncodeDataURI("image/png", []byte("X")))
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantMime string
		wantData string
		wantErr  bool
	}{
		{"png", "data:image/png;base64,AAAA", "image/png", "AAAA", false},
		{"jpeg with empty payload", "data:image/jpeg;base64,", "image/jpeg", "", false},
		{"no scheme", "image/png;base64,AAAA", "", "", true},
		{"no base64 marker", "data:image/png,AAAA", "", "", true},
		{"empty media type", "data:;base64,AAAA", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, payload, err := ParseDataURI(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDataURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
			assert.Equal(t, tt.wantData, payload)
		})
	}
}

func TestStripDataURIPrefix(t *testing.T) {
	payload, err := StripDataURIPrefix("data:image/webp;base64,UklGRg==")
	require.NoError(t, err)
	assert.Equal(t, "UklGRg==", payload)
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := DecodeDataURI(EncodeDataURI("image/gif", []byte("gif-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "image/gif", mime)
	assert.Equal(t, []byte("gif-bytes"), data)

	_, _, err = DecodeDataURI("data:image/png;base64,%%%")
	assert.ErrorIs(t, err, ErrInvalidDataURI)
}

func TestDetectMimeType(t *testing.T) {
	raw := pngBytes(t, 2, 2)

	assert.Equal(t, "image/jpeg", DetectMimeType("image/jpeg", raw), "declared type wins")
	assert.Equal(t, "image/png", DetectMimeType("", raw))
	assert.Equal(t, "image/png", DetectMimeType("application/octet-stream", raw))
}

func TestImageDimensions(t *testing.T) {
	w, h, format, ok := ImageDimensions(pngBytes(t, 7, 3))
	require.True(t, ok)
	assert.Equal(t, 7, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, "png", format)

	_, _, _, ok = ImageDimensions([]byte("not an image"))
	assert.False(t, ok)
}
