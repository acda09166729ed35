package upload

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxDocumentSize is the upload limit for a single KYC document.
const MaxDocumentSize = 5 << 20

var allowedExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var (
	ErrUnsupportedType = errors.New("only PDF, JPG, JPEG and PNG documents are supported")
	ErrEmptyFile       = errors.New("file is empty")
	ErrTooLarge        = fmt.Errorf("file exceeds %d MB", MaxDocumentSize>>20)
)

// ValidateDocumentBySniff checks the filename extension and the first bytes
// (head) of an uploaded document. Returns the detected mime type.
func ValidateDocumentBySniff(filename string, size int64, head []byte) (string, error) {
	if size <= 0 || len(head) == 0 {
		return "", ErrEmptyFile
	}
	if size > MaxDocumentSize {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedExt[ext]
	if !ok {
		return "", ErrUnsupportedType
	}

	detected := http.DetectContentType(head)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}

	// Block scriptable content regardless of extension
	if strings.HasPrefix(detected, "text/") || strings.Contains(detected, "xml") {
		return "", errors.New("invalid file type: text and markup content is not allowed")
	}
	if detected != want {
		return "", fmt.Errorf("file content (%s) does not match extension %s", detected, ext)
	}
	return detected, nil
}

// IsImage reports whether the mime type can be previewed as an image.
func IsImage(mime string) bool {
	return mime == "image/jpeg" || mime == "image/png"
}
