package models

import (
	"time"
)

// OwnerKind identifies the entity an attachment belongs to
type OwnerKind string

const (
	OwnerPatient      OwnerKind = "patient"
	OwnerConsultation OwnerKind = "consultation"
	OwnerStudy        OwnerKind = "study"
)

// Valid reports whether k is a known owner kind
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerPatient, OwnerConsultation, OwnerStudy:
		return true
	}
	return false
}

// File categories for patient attachments
const (
	CategoryDocument     = "document"
	CategoryImage        = "image"
	CategoryLabResult    = "lab_result"
	CategoryPrescription = "prescription"
	CategoryInsurance    = "insurance"
	CategoryConsent      = "consent"
	CategoryOther        = "other"
)

// Attachment represents a file attached to a patient, consultation or study.
// RelativePath is unique per owner kind and immutable after creation;
// OriginalName is kept for display and download only, never for on-disk addressing.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OwnerKind    OwnerKind `gorm:"size:20;not null;index:idx_attachments_owner;uniqueIndex:idx_attachments_path" json:"owner_kind"`
	OwnerID      uint      `gorm:"not null;index:idx_attachments_owner" json:"owner_id"`
	Category     string    `gorm:"size:50;index" json:"category,omitempty"`
	RelativePath string    `gorm:"size:500;not null;uniqueIndex:idx_attachments_path" json:"relative_path"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	ContentType  string    `gorm:"size:100" json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Description  string    `json:"description,omitempty"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}
