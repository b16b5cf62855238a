package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	Name           string     `json:"name" db:"name"`
	PhotoURL       string     `json:"photo_url,omitempty" db:"photo_url"`
	Email          string     `json:"email,omitempty" db:"email"`
	Phone          string     `json:"phone,omitempty" db:"phone"`
	Address        string     `json:"address,omitempty" db:"address"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender         string     `json:"gender,omitempty" db:"gender"`
	Age            int        `json:"age,omitempty" db:"age"`
	Insurance      string     `json:"insurance,omitempty" db:"insurance"`
	MaritalStatus  string     `json:"marital_status,omitempty" db:"marital_status"`
	BloodGroup     string     `json:"blood_group,omitempty" db:"blood_group"`
	Height         float64    `json:"height,omitempty" db:"height"`
	Weight         float64    `json:"weight,omitempty" db:"weight"`
	MedicalHistory string     `json:"medical_history,omitempty" db:"medical_history"`
	DoctorNotes    string     `json:"doctor_notes,omitempty" db:"doctor_notes"`
	Appointments   IDList     `json:"appointments" db:"appointments"`
	Consultations  IDList     `json:"consultations" db:"consultations"`
}

// PatientRef names one of the patient's back-reference sets
type PatientRef string

const (
	PatientRefAppointments  PatientRef = "appointments"
	PatientRefConsultations PatientRef = "consultations"
)

func (p *Patient) Refs(ref PatientRef) IDList {
	if ref == PatientRefAppointments {
		return p.Appointments
	}
	return p.Consultations
}

func (p *Patient) SetRefs(ref PatientRef, ids IDList) {
	if ref == PatientRefAppointments {
		p.Appointments = ids
		return
	}
	p.Consultations = ids
}

// PatientFields are the demographic and history fields shared by create
// and update requests
type PatientFields struct {
	Name           *string    `json:"name"`
	PhotoURL       *string    `json:"photo_url"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	Phone          *string    `json:"phone"`
	Address        *string    `json:"address"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         *string    `json:"gender" validate:"omitempty,oneof=male female other"`
	Age            *int       `json:"age" validate:"omitempty,gte=0"`
	Insurance      *string    `json:"insurance"`
	MaritalStatus  *string    `json:"marital_status"`
	BloodGroup     *string    `json:"blood_group"`
	Height         *float64   `json:"height" validate:"omitempty,gte=0"`
	Weight         *float64   `json:"weight" validate:"omitempty,gte=0"`
	MedicalHistory *string    `json:"medical_history"`
	DoctorNotes    *string    `json:"doctor_notes"`
}

type CreatePatientRequest struct {
	PatientFields
}

// HasName reports whether the mandatory name was supplied
func (r CreatePatientRequest) HasName() bool {
	return r.Name != nil && *r.Name != ""
}

type UpdatePatientRequest struct {
	PatientFields
}

// Apply copies every non-empty field onto p. Absent and zero values leave
// the stored value untouched.
func (f PatientFields) Apply(p *Patient) {
	setString(&p.Name, f.Name)
	setString(&p.PhotoURL, f.PhotoURL)
	setString(&p.Email, f.Email)
	setString(&p.Phone, f.Phone)
	setString(&p.Address, f.Address)
	if f.DateOfBirth != nil && !f.DateOfBirth.IsZero() {
		dob := *f.DateOfBirth
		p.DateOfBirth = &dob
	}
	setString(&p.Gender, f.Gender)
	if f.Age != nil && *f.Age != 0 {
		p.Age = *f.Age
	}
	setString(&p.Insurance, f.Insurance)
	setString(&p.MaritalStatus, f.MaritalStatus)
	setString(&p.BloodGroup, f.BloodGroup)
	if f.Height != nil && *f.Height != 0 {
		p.Height = *f.Height
	}
	if f.Weight != nil && *f.Weight != 0 {
		p.Weight = *f.Weight
	}
	setString(&p.MedicalHistory, f.MedicalHistory)
	setString(&p.DoctorNotes, f.DoctorNotes)
}

// PatientView is a patient with its appointments and consultations
// resolved, plus the nearest upcoming appointment.
type PatientView struct {
	*Patient
	Appointments    []*Appointment  `json:"appointments"`
	Consultations   []*Consultation `json:"consultations"`
	NextAppointment *Appointment    `json:"next_appointment"`
}

// PatientSummary is embedded in appointment and consultation listings
type PatientSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email,omitempty"`
	Phone  string    `json:"phone,omitempty"`
	Gender string    `json:"gender,omitempty"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Gender: p.Gender}
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}
