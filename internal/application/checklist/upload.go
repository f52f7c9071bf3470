package checklist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/garyjia/visaflow/internal/domain/entity"
)

// DefaultMaxUploadBytes is the per-file size limit (5 MiB)
const DefaultMaxUploadBytes int64 = 5 * 1024 * 1024

// ErrInvalidUpload is returned when an upload fails validation
var ErrInvalidUpload = errors.New("invalid upload")

// Upload describes a file handed over by the upload widget
type Upload struct {
	FileName  string `json:"fileName" validate:"required,max=255"`
	SizeBytes int64  `json:"sizeBytes" validate:"gt=0"`
}

// accepted extensions per document type; nil accepts anything
var acceptedExtensions = map[entity.DocumentType][]string{
	entity.DocumentTypePassport:   {".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic"},
	entity.DocumentTypeResume:     {".pdf", ".doc", ".docx"},
	entity.DocumentTypeEmployment: {".pdf", ".doc", ".docx"},
	entity.DocumentTypeSupporting: nil,
}

var validate = validator.New()

// Validator checks uploads against type and size rules
type Validator struct {
	maxBytes int64
}

// NewValidator creates an upload validator; maxBytes <= 0 uses the default
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// Check validates a batch of uploads for docType
func (v *Validator) Check(docType entity.DocumentType, uploads []Upload) error {
	if !docType.IsValid() {
		return fmt.Errorf("%w: unknown document type %q", ErrInvalidUpload, docType)
	}
	if len(uploads) == 0 {
		return fmt.Errorf("%w: no files", ErrInvalidUpload)
	}

	for _, u := range uploads {
		if err := validate.Struct(u); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidUpload, u.FileName, err)
		}
		if u.SizeBytes > v.maxBytes {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidUpload, u.FileName, v.maxBytes)
		}
		if !extensionAccepted(docType, u.FileName) {
			return fmt.Errorf("%w: %s is not an accepted file type for %s", ErrInvalidUpload, u.FileName, docType)
		}
	}
	return nil
}

func extensionAccepted(docType entity.DocumentType, fileName string) bool {
	exts := acceptedExtensions[docType]
	if exts == nil {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// NewRefs turns uploads into document references stamped with now
func NewRefs(docType entity.DocumentType, uploads []Upload, now time.Time) []entity.DocumentRef {
	refs := make([]entity.DocumentRef, 0, len(uploads))
	for _, u := range uploads {
		refs = append(refs, entity.DocumentRef{
			ID:            uuid.NewString(),
			Type:          docType,
			FileName:      u.FileName,
			FileSizeBytes: u.SizeBytes,
			UploadedAt:    now,
		})
	}
	return refs
}
