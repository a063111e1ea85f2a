// Package storage holds the resume storage backends and the upload policy
// every backend enforces before writing.
package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	almalead "github.com/phbpx/almalead"
)

// DefaultMaxBytes is the resume size limit (10 MiB).
const DefaultMaxBytes = 10 << 20

var DefaultExtensions = []string{".pdf", ".doc", ".docx"}

var contentTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// Policy is the allow-list and size limit for resume uploads.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, Extensions: DefaultExtensions}
}

// Check validates a file's name, declared content type and size. An empty or
// generic content type is accepted as long as the extension is allowed.
func (p Policy) Check(filename, contentType string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.allowed(ext) {
		return fmt.Errorf("%w: allowed types: %s", almalead.ErrUnsupportedMediaType, strings.Join(p.extensions(), ", "))
	}

	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: malformed content type %q", almalead.ErrUnsupportedMediaType, contentType)
		}
		if mt != "application/octet-stream" {
			if want, ok := contentTypes[mt]; !ok || !p.allowed(want) {
				return fmt.Errorf("%w: content type %s", almalead.ErrUnsupportedMediaType, mt)
			}
		}
	}

	if size > p.maxBytes() {
		return fmt.Errorf("%w: maximum size: %d bytes", almalead.ErrPayloadTooLarge, p.maxBytes())
	}
	if size <= 0 {
		return &almalead.ValidationError{Field: "resume", Reason: "file is empty"}
	}
	return nil
}

func (p Policy) allowed(ext string) bool {
	for _, e := range p.extensions() {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (p Policy) extensions() []string {
	if len(p.Extensions) == 0 {
		return DefaultExtensions
	}
	return p.Extensions
}

func (p Policy) maxBytes() int64 {
	if p.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return p.MaxBytes
}

// NewKey returns a fresh object key for a resume, keeping the original
// extension so downloads open with the right application.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("resumes/%04d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}
