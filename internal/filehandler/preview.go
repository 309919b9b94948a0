package filehandler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultPreviewMaxDimension is the maximum width or height of a generated preview.
const DefaultPreviewMaxDimension = 400

// previewJPEGQuality trades size for fidelity in the preview encoding.
const previewJPEGQuality = 80

// PreviewDataURL produces a base64 data URL preview for a media file.
//
// JPEG and PNG images are decoded, downscaled to maxDimension with
// x/image/draw, and re-encoded as JPEG. Other formats (GIF, WebP, HEIC,
// videos) return the original bytes under their own MIME type; they are
// either already small or previewed by the terminal/browser as-is.
func PreviewDataURL(mediaFile *MediaFile, maxDimension int) (string, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultPreviewMaxDimension
	}

	ext := strings.ToLower(filepath.Ext(mediaFile.Path))

	switch ext {
	case ".jpg", ".jpeg", ".png":
		data, err := scaledJPEG(mediaFile.Path, ext, maxDimension)
		if err != nil {
			return "", err
		}
		return encodeDataURL("image/jpeg", data), nil
	default:
		data, err := os.ReadFile(mediaFile.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return encodeDataURL(mediaFile.MIMEType, data), nil
	}
}

func scaledJPEG(path, ext string, maxDimension int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var src image.Image
	if ext == ".png" {
		src, err = png.Decode(f)
	} else {
		src, err = jpeg.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxDimension || height > maxDimension {
		if width > height {
			height = height * maxDimension / width
			width = maxDimension
		} else {
			width = width * maxDimension / height
			height = maxDimension
		}

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	log.Debug().
		Str("path", path).
		Int("width", width).
		Int("height", height).
		Int("bytes", buf.Len()).
		Msg("Preview generated")

	return buf.Bytes(), nil
}

func encodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
