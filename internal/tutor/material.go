package tutor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/pkarpov/studytutor/internal/model"
)

// DefaultMaxMaterialBytes caps uploads when no limit is configured.
const DefaultMaxMaterialBytes int64 = 8 << 20

var (
	// ErrMaterialTooLarge rejects an upload over the configured size cap.
	ErrMaterialTooLarge = errors.New("material exceeds the size limit")

	// ErrUnsupportedMaterial rejects a MIME type outside the allow-list.
	ErrUnsupportedMaterial = errors.New("unsupported material type")

	// ErrMaterialMismatch rejects content whose sniffed type contradicts the
	// declared one.
	ErrMaterialMismatch = errors.New("material content does not match its declared type")
)

// NewMaterial validates an upload and produces the Material value handed to
// the generation client: decoded text for text types, base64 data otherwise.
func NewMaterial(name, declaredMIME string, data []byte, maxBytes int64) (*model.Material, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMaterialBytes
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrMaterialTooLarge, len(data), maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedMaterial)
	}

	mimeType := normalizeMIME(declaredMIME)
	if !model.AllowedMIMETypes[mimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMaterial, declaredMIME)
	}

	m := &model.Material{
		ID:         uuid.NewString(),
		Name:       name,
		MIMEType:   mimeType,
		SizeBytes:  int64(len(data)),
		UploadedAt: time.Now(),
	}

	if model.IsTextMIME(mimeType) {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: text file is not valid UTF-8", ErrMaterialMismatch)
		}
		m.Text = string(data)
		return m, nil
	}

	// Binary types are sniffed so a renamed file cannot smuggle in another
	// format.
	if detected := mimetype.Detect(data); !detected.Is(mimeType) {
		return nil, fmt.Errorf("%w: declared %s, sniffed %s", ErrMaterialMismatch, mimeType, detected.String())
	}
	m.Data = base64.StdEncoding.EncodeToString(data)
	return m, nil
}

// normalizeMIME strips MIME parameters like "; charset=utf-8".
func normalizeMIME(declared string) string {
	parsed, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return declared
	}
	return parsed
}
