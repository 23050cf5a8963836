package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DataURIPrefix = "data:image/png;base64,"

var ErrEmptyContent = errors.New("qr content is empty")

type Renderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewRenderer() *Renderer {
	return &Renderer{Size: 256, Level: qrcode.Medium}
}

// Render encodes content as a PNG QR image wrapped in a data URI.
func (r *Renderer) Render(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	png, err := qrcode.Encode(content, r.Level, r.Size)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	return DataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

func GenerateQRCode(url string) (string, error) {
	return NewRenderer().Render(url)
}

// DecodeDataURI returns the PNG bytes of a data URI produced by Render.
func DecodeDataURI(uri string) ([]byte, error) {
	payload, ok := strings.CutPrefix(uri, DataURIPrefix)
	if !ok {
		return nil, fmt.Errorf("not a PNG data URI")
	}
	return base64.StdEncoding.DecodeString(payload)
}
