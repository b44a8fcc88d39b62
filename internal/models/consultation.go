package models

import (
	"time"
)

// Consultation represents a single patient visit with vitals, diagnosis and treatment
type Consultation struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	PatientID uint `gorm:"not null;index" json:"patient_id"`

	ConsultationDate time.Time `gorm:"not null;index" json:"consultation_date"`
	Reason           string    `gorm:"not null" json:"reason"`
	Symptoms         string    `json:"symptoms,omitempty"`
	Diagnosis        string    `json:"diagnosis,omitempty"`
	Treatment        string    `json:"treatment,omitempty"`
	Notes            string    `json:"notes,omitempty"`

	// Vital signs
	BloodPressure string   `gorm:"size:20" json:"blood_pressure,omitempty"`
	HeartRate     *int     `json:"heart_rate,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
	Height        *float64 `json:"height,omitempty"`

	NextVisit *time.Time `json:"next_visit,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Consultation
func (Consultation) TableName() string {
	return "consultations"
}
