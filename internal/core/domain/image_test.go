package domain_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// Smallest valid-looking PNG and JPEG headers; enough for magic number sniffing.
var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
)

func TestDecodeImage_PNG(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(pngHeader)

	img, err := domain.DecodeImage(data, "shot.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, "png", img.Extension)
	assert.Equal(t, "shot.png", img.FileName)
	assert.Equal(t, len(pngHeader), img.Size)
}

func TestDecodeImage_DataURL(t *testing.T) {
	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(jpegHeader)

	img, err := domain.DecodeImage(data, "")
	require.NoError(t, err)
	assert.Equal(t, "jpg", img.Extension)
	assert.False(t, strings.HasPrefix(img.Base64, "data:"))
}

func TestDecodeImage_Rejects(t *testing.T) {
	_, err := domain.DecodeImage("", "x.png")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = domain.DecodeImage("not base64 at all!", "x.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	pdf := base64.StdEncoding.EncodeToString([]byte("%PDF-1.7\n%âãÏÓ"))
	_, err = domain.DecodeImage(pdf, "x.pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	_, err = domain.DecodeImage("data:image/png;base64", "x.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)
}
