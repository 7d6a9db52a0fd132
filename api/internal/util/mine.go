package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// SniffMimeForOCR returns the short format name expected by Yandex Vision.
func SniffMimeForOCR(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "JPEG"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "PNG"
	}
	return ""
}

// SniffMimeHTTP returns an HTTP content type for image bytes.
func SniffMimeHTTP(b []byte) string {
	if m := SniffMimeForOCR(b); m == "JPEG" {
		return "image/jpeg"
	} else if m == "PNG" {
		return "image/png"
	}
	return http.DetectContentType(b)
}

// SHA256Hex is the hex digest used as the image key in the run ledger.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
