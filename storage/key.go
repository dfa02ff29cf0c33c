package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// maxExtLen caps the extension hint copied from the original filename.
	maxExtLen = 10

	// secureExt is used for every ciphertext blob.
	secureExt = ".bin"
)

// NewStorageKey returns a unique blob name: a millisecond timestamp, 12 random
// hex characters, and an extension hint. Secure blobs always use ".bin";
// public blobs keep a sanitized extension from the original filename.
func NewStorageKey(filename string, secure bool, now time.Time) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("storage: random key suffix: %w", err)
	}
	ext := secureExt
	if !secure {
		ext = extensionHint(filename)
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), hex.EncodeToString(suffix), ext), nil
}

// extensionHint returns a lowercase alphanumeric extension from filename, or ".bin".
func extensionHint(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" || len(ext) > maxExtLen {
		return secureExt
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return secureExt
		}
	}
	return "." + strings.ToLower(ext)
}
