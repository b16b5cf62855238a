package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// Studies describes laboratory or imaging studies attached to a consultation
type Studies struct {
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

func (s Studies) Value() (driver.Value, error) { return jsonValue(s) }

func (s *Studies) Scan(src interface{}) error { return scanJSON(src, s) }

type GynecologicalInformation struct {
	LastMenstrualPeriod *time.Time `json:"last_menstrual_period,omitempty"`
	EstimatedDueDate    *time.Time `json:"estimated_due_date,omitempty"`
}

func (g GynecologicalInformation) Value() (driver.Value, error) { return jsonValue(g) }

func (g *GynecologicalInformation) Scan(src interface{}) error { return scanJSON(src, g) }

type Consultation struct {
	Base
	Reason                   string                    `db:"reason" json:"reason"`
	Symptoms                 string                    `db:"symptoms" json:"symptoms"`
	Diagnosis                string                    `db:"diagnosis" json:"diagnosis"`
	Treatment                string                    `db:"treatment" json:"treatment"`
	LaboratoryStudies        *Studies                  `db:"laboratory_studies" json:"laboratory_studies,omitempty"`
	ImagesStudies            *Studies                  `db:"images_studies" json:"images_studies,omitempty"`
	GynecologicalInformation *GynecologicalInformation `db:"gynecological_information" json:"gynecological_information,omitempty"`
	UserID                   uuid.UUID                 `db:"user_id" json:"user_id"`
	PatientID                uuid.UUID                 `db:"patient_id" json:"patient_id"`
	AppointmentID            *uuid.UUID                `db:"appointment_id" json:"appointment_id,omitempty"`
}

type CreateConsultationRequest struct {
	Reason                   string                    `json:"reason" validate:"required"`
	Symptoms                 string                    `json:"symptoms" validate:"required"`
	Diagnosis                string                    `json:"diagnosis" validate:"required"`
	Treatment                string                    `json:"treatment" validate:"required"`
	LaboratoryStudies        *Studies                  `json:"laboratory_studies"`
	ImagesStudies            *Studies                  `json:"images_studies"`
	GynecologicalInformation *GynecologicalInformation `json:"gynecological_information"`
	PatientID                *uuid.UUID                `json:"patient_id" validate:"required"`
	AppointmentID            *uuid.UUID                `json:"appointment_id"`
}

type UpdateConsultationRequest struct {
	Reason                   *string                   `json:"reason"`
	Symptoms                 *string                   `json:"symptoms"`
	Diagnosis                *string                   `json:"diagnosis"`
	Treatment                *string                   `json:"treatment"`
	LaboratoryStudies        *Studies                  `json:"laboratory_studies"`
	ImagesStudies            *Studies                  `json:"images_studies"`
	GynecologicalInformation *GynecologicalInformation `json:"gynecological_information"`
	PatientID                *uuid.UUID                `json:"patient_id"`
	AppointmentID            *uuid.UUID                `json:"appointment_id"`
}

// ConsultationView is a consultation with its patient resolved
type ConsultationView struct {
	*Consultation
	Patient *PatientSummary `json:"patient"`
}
