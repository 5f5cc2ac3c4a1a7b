package types

import (
	"crypto/sha256"
	"errors"
	"strings"
)

// DocType distinguishes granted patents from published applications
type DocType string

const (
	DocTypeGrant       DocType = "grant"
	DocTypeApplication DocType = "application"
	DocTypeUnknown     DocType = "unknown"
)

// Record tags used by USPTO bulk XML files
const (
	RecordTagGrant       = "us-patent-grant"
	RecordTagApplication = "us-patent-application"
)

// Patent is a parsed patent document
type Patent struct {
	DocID       string  `json:"doc_id"`
	DocType     DocType `json:"doc_type,omitempty"`
	Title       string  `json:"title"`
	Abstract    string  `json:"abstract"`
	Claims      string  `json:"claims"`
	Description string  `json:"description"`
	SourceFile  string  `json:"source_file,omitempty"`
}

// Validate checks that the patent can be stored
func (p *Patent) Validate() error {
	if strings.TrimSpace(p.DocID) == "" {
		return ErrInvalidDocID
	}
	if p.Title == "" && p.Abstract == "" && p.Claims == "" && p.Description == "" {
		return errors.New("patent has no text")
	}
	return nil
}

// ContentHash returns a SHA-256 hash over every stored field. Used for incremental indexing.
func (p *Patent) ContentHash() [32]byte {
	h := sha256.New()
	for _, s := range []string{string(p.DocType), p.SourceFile, p.Title, p.Abstract, p.Claims, p.Description} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// TitleOrDefault returns the title, or "No title" when it is empty
func (p *Patent) TitleOrDefault() string {
	if p == nil || p.Title == "" {
		return "No title"
	}
	return p.Title
}

// DocTypeOrDefault returns the document type, or "unknown" when it is empty
func (p *Patent) DocTypeOrDefault() string {
	if p == nil || p.DocType == "" {
		return string(DocTypeUnknown)
	}
	return string(p.DocType)
}

// DocTypeForTag maps a USPTO record tag to a document type
func DocTypeForTag(tag string) DocType {
	switch tag {
	case RecordTagGrant:
		return DocTypeGrant
	case RecordTagApplication:
		return DocTypeApplication
	default:
		return DocTypeUnknown
	}
}
