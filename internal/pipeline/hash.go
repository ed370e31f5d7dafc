package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// hashChunkSize is the read buffer used when streaming files into the
// hasher. Files are never loaded whole into memory.
const hashChunkSize = 64 * 1024

// HashFile streams the file through SHA-256 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// AssetPath computes the content-addressed object path for a fingerprint:
// two levels of hash-prefix sharding followed by the full hash.
func AssetPath(fingerprint, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("sha256/%s/%s/%s.%s", fingerprint[:2], fingerprint[2:4], fingerprint, ext)
}

// ContentTypeForExt maps a screenshot file extension to its MIME type.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// imageDimensions reads just enough of a PNG header to report its size.
// Non-PNG or unreadable files report zero dimensions; the fields are
// optional on the asset record.
func imageDimensions(path string) (width, height int) {
	if strings.ToLower(filepath.Ext(path)) != ".png" {
		return 0, 0
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
