package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle status of a document.
type DocumentStatus int16

const (
	DocumentStatusDisabled DocumentStatus = 0
	DocumentStatusEnabled  DocumentStatus = 1
	DocumentStatusFailed   DocumentStatus = 2
)

// Document represents an uploaded document owned by a knowledge base.
// Documents live only in the record store; the search index never mirrors
// them directly, only their chunks.
type Document struct {
	ID        string
	Name      string
	KBID      string
	Status    DocumentStatus
	Error     string // diagnostic text when Status is failed
	Order     int
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// NewDocument creates an enabled document for the given knowledge base.
func NewDocument(id, name, kbID, createdBy string, now time.Time) *Document {
	return &Document{
		ID:        id,
		Name:      name,
		KBID:      kbID,
		Status:    DocumentStatusEnabled,
		CreatedAt: now,
		CreatedBy: createdBy,
		UpdatedAt: now,
	}
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}
	if d.KBID == "" {
		return fmt.Errorf("document KBID is required")
	}
	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %d", d.Status)
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusDisabled, DocumentStatusEnabled, DocumentStatusFailed:
		return true
	}
	return false
}

// IsValidStatusTarget reports whether s is a valid target for a
// status-modify request. Only the enabled/disabled pair participates;
// failed is terminal for modify purposes.
func IsValidStatusTarget(s DocumentStatus) bool {
	return s == DocumentStatusDisabled || s == DocumentStatusEnabled
}
