package models

import (
	"fmt"
	"time"
)

// Patient represents a patient record with personal and basic medical data
type Patient struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:100;not null;index" json:"first_name"`
	LastName  string    `gorm:"size:100;not null;index" json:"last_name"`
	DNI       string    `gorm:"size:20;not null;uniqueIndex" json:"dni"`
	BirthDate time.Time `gorm:"not null" json:"birth_date"`
	Gender    string    `gorm:"size:10" json:"gender"`
	BloodType string    `gorm:"size:5" json:"blood_type,omitempty"`

	// Contact
	Phone   string `gorm:"size:20" json:"phone,omitempty"`
	Email   string `gorm:"size:100" json:"email,omitempty"`
	Address string `json:"address,omitempty"`

	// Basic medical information (free text)
	Allergies         string `json:"allergies,omitempty"`
	ChronicConditions string `json:"chronic_conditions,omitempty"`
	FamilyHistory     string `json:"family_history,omitempty"`

	Notes    string `json:"notes,omitempty"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Patient
func (Patient) TableName() string {
	return "patients"
}

// FullName returns the patient's full name
func (p *Patient) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// Age returns the patient's current age in years
func (p *Patient) Age() int {
	now := time.Now()
	age := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		age--
	}
	return age
}

// PatientListItem is a lightweight version for list views
type PatientListItem struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	DNI       string    `json:"dni"`
	BirthDate time.Time `json:"birth_date"`
	Gender    string    `json:"gender"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
}
