package ledger

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxAttachmentBytes caps receipt uploads at 10 MiB.
const DefaultMaxAttachmentBytes = 10 << 20

const (
	ContentTypePDF    = "application/pdf"
	ContentTypeJPEG   = "image/jpeg"
	ContentTypePNG    = "image/png"
	ContentTypeBinary = "application/octet-stream"
)

var attachmentTypes = map[string]string{
	".pdf":  ContentTypePDF,
	".jpg":  ContentTypeJPEG,
	".jpeg": ContentTypeJPEG,
	".png":  ContentTypePNG,
}

// ContentTypeFor labels an attachment by its filename extension. The bytes
// are never inspected.
func ContentTypeFor(name string) string {
	if ct, ok := attachmentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return ContentTypeBinary
}

// ValidateAttachment checks a receipt before it is stored: present,
// non-empty, a pdf/jpg/jpeg/png filename, and at most maxBytes long.
func ValidateAttachment(att *Attachment, maxBytes int64) error {
	if att == nil || len(att.Data) == 0 {
		return NewValidationError("attachment", "a receipt file is required")
	}
	name := strings.TrimSpace(att.Name)
	if name == "" {
		return NewValidationError("attachment", "filename is required")
	}
	if _, ok := attachmentTypes[strings.ToLower(filepath.Ext(name))]; !ok {
		return NewValidationError("attachment", "only PDF, JPG or PNG files are accepted")
	}
	if maxBytes > 0 && int64(len(att.Data)) > maxBytes {
		return NewValidationError("attachment", fmt.Sprintf("file exceeds %d bytes", maxBytes))
	}
	return nil
}
