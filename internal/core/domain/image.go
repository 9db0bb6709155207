package domain

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
)

// MaxImageBytes bounds decoded uploads.
const MaxImageBytes = 10 << 20

var supportedImageExtensions = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
}

// ImagePayload is an uploaded image after decoding and content sniffing.
type ImagePayload struct {
	FileName  string
	Base64    string // raw base64, without any data: prefix
	MIME      string
	Extension string
	Size      int
}

// DecodeImage accepts base64 image data, optionally as a data URL
// ("data:image/png;base64,..."), and checks the bytes really are an image.
// The declared type of a data URL is ignored; only magic numbers count.
func DecodeImage(imageData, fileName string) (*ImagePayload, error) {
	data := strings.TrimSpace(imageData)
	if data == "" {
		return nil, ErrEmptyInput
	}
	if strings.HasPrefix(data, "data:") {
		comma := strings.Index(data, ",")
		if comma < 0 {
			return nil, fmt.Errorf("%w: data url without payload", ErrUnsupportedImage)
		}
		data = data[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrUnsupportedImage, err)
	}
	if len(raw) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrUnsupportedImage, len(raw), MaxImageBytes)
	}

	kind, err := filetype.Match(raw)
	if err != nil || kind == filetype.Unknown || !supportedImageExtensions[kind.Extension] {
		return nil, ErrUnsupportedImage
	}

	return &ImagePayload{
		FileName:  fileName,
		Base64:    data,
		MIME:      kind.MIME.Value,
		Extension: kind.Extension,
		Size:      len(raw),
	}, nil
}
