package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	// MaxCoverPhotoSize is the upload limit for schedule cover photos (10MB).
	MaxCoverPhotoSize = 10 * 1024 * 1024
	// CoverPhotoWidth and CoverPhotoHeight bound the stored cover photo.
	CoverPhotoWidth  = 1600
	CoverPhotoHeight = 900
	coverQuality     = 82
)

// ErrUnsupportedImage is returned for anything but jpeg, png or webp input.
var ErrUnsupportedImage = errors.New("unsupported image type")

// AllowedImageExtensions maps accepted upload extensions to MIME types.
var AllowedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// DecodeImage sniffs the content type of data, falling back to the file extension.
func DecodeImage(data []byte, filename string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") || ct == "image/gif" {
		ct = AllowedImageExtensions[strings.ToLower(filepath.Ext(filename))]
	}
	switch ct {
	case "image/webp":
		return webp.Decode(bytes.NewReader(data))
	case "image/jpeg", "image/png":
		return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	return nil, ErrUnsupportedImage
}

// EncodeCoverPhoto fits img into the cover bounds, keeping aspect ratio, and encodes it as lossy WebP.
func EncodeCoverPhoto(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() > CoverPhotoWidth || b.Dy() > CoverPhotoHeight {
		img = imaging.Fit(img, CoverPhotoWidth, CoverPhotoHeight, imaging.Lanczos)
	}
	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: coverQuality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
