package domain

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const ContentTypePDF = "application/pdf"

// Document is one file queued for upload. Content is read once.
type Document struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// IsPDF filters by declared type or extension; the bytes are not inspected.
func (d Document) IsPDF() bool {
	contentType := strings.ToLower(strings.TrimSpace(d.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == ContentTypePDF {
		return true
	}
	return strings.EqualFold(filepath.Ext(d.Filename), ".pdf")
}

// ValidateDocuments accepts a non-empty set made only of PDF documents.
func ValidateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("%w: at least one document is required", ErrValidation)
	}
	for i, doc := range docs {
		if doc.Content == nil {
			return fmt.Errorf("%w: document %d has no content", ErrValidation, i)
		}
		if strings.TrimSpace(doc.Filename) == "" {
			return fmt.Errorf("%w: document %d has no file name", ErrValidation, i)
		}
		if !doc.IsPDF() {
			return fmt.Errorf("%w: %q is not a PDF document", ErrValidation, doc.Filename)
		}
	}
	return nil
}
