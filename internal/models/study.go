package models

import (
	"time"
)

// Study types
const (
	StudyTypeLaboratory        = "laboratory"
	StudyTypeRadiology         = "radiology"
	StudyTypeUltrasound        = "ultrasound"
	StudyTypeTomography        = "tomography"
	StudyTypeResonance         = "resonance"
	StudyTypeElectrocardiogram = "electrocardiogram"
	StudyTypeEndoscopy         = "endoscopy"
	StudyTypeBiopsy            = "biopsy"
	StudyTypeOther             = "other"
)

// MedicalStudy represents a medical study or analysis, optionally linked to a consultation
type MedicalStudy struct {
	ID             uint  `gorm:"primaryKey" json:"id"`
	PatientID      uint  `gorm:"not null;index" json:"patient_id"`
	ConsultationID *uint `gorm:"index" json:"consultation_id,omitempty"`

	StudyType string    `gorm:"size:50;not null;index" json:"study_type"`
	StudyName string    `gorm:"size:255;not null;index" json:"study_name"`
	StudyDate time.Time `gorm:"not null;index" json:"study_date"`

	Institution      string `gorm:"size:255" json:"institution,omitempty"`
	RequestingDoctor string `gorm:"size:255" json:"requesting_doctor,omitempty"`

	// Results
	Results      string `json:"results,omitempty"`
	Observations string `json:"observations,omitempty"`
	Diagnosis    string `json:"diagnosis,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for MedicalStudy
func (MedicalStudy) TableName() string {
	return "medical_studies"
}
