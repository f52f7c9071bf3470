// Package checklist is a read-only view over a record's document list,
// plus the replace-or-append rule applied when new files are uploaded.
package checklist

import (
	"github.com/garyjia/visaflow/internal/domain/entity"
)

// ByType returns the documents of exactly the given type, preserving order
func ByType(docs []entity.DocumentRef, docType entity.DocumentType) []entity.DocumentRef {
	out := make([]entity.DocumentRef, 0, len(docs))
	for _, d := range docs {
		if d.Type == docType {
			out = append(out, d)
		}
	}
	return out
}

// Has reports whether at least one document of the type exists
func Has(docs []entity.DocumentRef, docType entity.DocumentType) bool {
	for _, d := range docs {
		if d.Type == docType {
			return true
		}
	}
	return false
}

// Latest returns the most recently uploaded document of the type.
// Ties keep the later list position.
func Latest(docs []entity.DocumentRef, docType entity.DocumentType) (entity.DocumentRef, bool) {
	var (
		latest entity.DocumentRef
		found  bool
	)
	for _, d := range docs {
		if d.Type != docType {
			continue
		}
		if !found || !d.UploadedAt.Before(latest.UploadedAt) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// ApplyUpload returns the document list after uploading refs of docType.
// Supporting documents are appended; any other type replaces all prior
// entries of that type so at most one stays live.
func ApplyUpload(docs []entity.DocumentRef, docType entity.DocumentType, refs []entity.DocumentRef) []entity.DocumentRef {
	out := make([]entity.DocumentRef, 0, len(docs)+len(refs))
	for _, d := range docs {
		if d.Type == docType && !docType.AllowsMultiple() {
			continue
		}
		out = append(out, d)
	}
	if !docType.AllowsMultiple() && len(refs) > 1 {
		refs = refs[len(refs)-1:]
	}
	return append(out, refs...)
}

// Remove drops the document with the given id
func Remove(docs []entity.DocumentRef, id string) ([]entity.DocumentRef, bool) {
	out := make([]entity.DocumentRef, 0, len(docs))
	removed := false
	for _, d := range docs {
		if d.ID == id {
			removed = true
			continue
		}
		out = append(out, d)
	}
	return out, removed
}

// Entry is one line of the review checklist
type Entry struct {
	Type     entity.DocumentType `json:"type"`
	Count    int                 `json:"count"`
	Latest   string              `json:"latest,omitempty"`
	Required bool                `json:"required"`
}

// Summary returns one entry per document type in display order
func Summary(docs []entity.DocumentRef) []Entry {
	entries := make([]Entry, 0, len(entity.DocumentTypes))
	for _, t := range entity.DocumentTypes {
		e := Entry{
			Type:     t,
			Count:    len(ByType(docs, t)),
			Required: t == entity.DocumentTypePassport,
		}
		if latest, ok := Latest(docs, t); ok {
			e.Latest = latest.FileName
		}
		entries = append(entries, e)
	}
	return entries
}
