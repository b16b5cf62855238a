package model

import "time"

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleUser          Role = "user"
	RolePrivileged    Role = "privileged"
)

// BypassesSubscription reports whether the role may sign in without an
// active subscription
func (r Role) BypassesSubscription() bool {
	return r == RoleAdministrator || r == RolePrivileged
}

type SubscriptionType string

const (
	SubscriptionInactive       SubscriptionType = "inactive"
	SubscriptionActive         SubscriptionType = "active"
	SubscriptionSinglePurchase SubscriptionType = "single-purchase"
)

type Subscription struct {
	Type           SubscriptionType `json:"type" db:"type"`
	SubscriptionID *string          `json:"subscription_id" db:"subscription_id"`
	DueDate        *time.Time       `json:"due_date" db:"due_date"`
}

// User is a practitioner account. Appointments, Patients and Consultations
// are back-reference sets maintained by the integrity coordinator.
type User struct {
	Base
	Email         string       `json:"email" db:"email"`
	PasswordHash  string       `json:"-" db:"password_hash"`
	Name          string       `json:"name" db:"name"`
	Role          Role         `json:"role" db:"role"`
	EmailVerified bool         `json:"email_verified" db:"email_verified"`
	PhotoURL      string       `json:"photo_url,omitempty" db:"photo_url"`
	WorkLogoURL   string       `json:"work_logo_url,omitempty" db:"work_logo_url"`
	PersonalPhone string       `json:"personal_phone,omitempty" db:"personal_phone"`
	WorkPhone     string       `json:"work_phone,omitempty" db:"work_phone"`
	Speciality    string       `json:"speciality,omitempty" db:"speciality"`
	WorkAddress   string       `json:"work_address,omitempty" db:"work_address"`
	Gender        string       `json:"gender,omitempty" db:"gender"`
	Subscription  Subscription `json:"subscription" db:"subscription"`
	Appointments  IDList       `json:"appointments" db:"appointments"`
	Patients      IDList       `json:"patients" db:"patients"`
	Consultations IDList       `json:"consultations" db:"consultations"`
}

// UserRef names one of the user's back-reference sets
type UserRef string

const (
	UserRefAppointments  UserRef = "appointments"
	UserRefPatients      UserRef = "patients"
	UserRefConsultations UserRef = "consultations"
)

// UpdateUserRequest is a partial profile update. Empty values are ignored.
type UpdateUserRequest struct {
	Name               *string `json:"name"`
	PhotoURL           *string `json:"photo_url"`
	WorkLogoURL        *string `json:"work_logo_url"`
	Email              *string `json:"email" validate:"omitempty,email"`
	PersonalPhone      *string `json:"personal_phone"`
	WorkPhone          *string `json:"work_phone"`
	Speciality         *string `json:"speciality"`
	WorkAddress        *string `json:"work_address"`
	Gender             *string `json:"gender" validate:"omitempty,oneof=male female other"`
	OldPassword        string  `json:"old_password"`
	NewPassword        string  `json:"new_password"`
	ConfirmNewPassword string  `json:"confirm_new_password"`
}

// WantsPasswordChange reports whether any password field was sent
func (r UpdateUserRequest) WantsPasswordChange() bool {
	return r.OldPassword != "" || r.NewPassword != "" || r.ConfirmNewPassword != ""
}

// ClearableUserField is the closed set of profile fields a user may unset
type ClearableUserField string

const (
	FieldPhotoURL      ClearableUserField = "photo_url"
	FieldWorkLogoURL   ClearableUserField = "work_logo_url"
	FieldPersonalPhone ClearableUserField = "personal_phone"
	FieldWorkPhone     ClearableUserField = "work_phone"
	FieldSpeciality    ClearableUserField = "speciality"
	FieldWorkAddress   ClearableUserField = "work_address"
	FieldGender        ClearableUserField = "gender"
)

var clearableUserFields = map[ClearableUserField]struct{}{
	FieldPhotoURL:      {},
	FieldWorkLogoURL:   {},
	FieldPersonalPhone: {},
	FieldWorkPhone:     {},
	FieldSpeciality:    {},
	FieldWorkAddress:   {},
	FieldGender:        {},
}

func (f ClearableUserField) Valid() bool {
	_, ok := clearableUserFields[f]
	return ok
}

// Clear zeroes the named field on u. It reports false for fields outside
// the clearable set.
func (u *User) Clear(f ClearableUserField) bool {
	switch f {
	case FieldPhotoURL:
		u.PhotoURL = ""
	case FieldWorkLogoURL:
		u.WorkLogoURL = ""
	case FieldPersonalPhone:
		u.PersonalPhone = ""
	case FieldWorkPhone:
		u.WorkPhone = ""
	case FieldSpeciality:
		u.Speciality = ""
	case FieldWorkAddress:
		u.WorkAddress = ""
	case FieldGender:
		u.Gender = ""
	default:
		return false
	}
	return true
}

type DeleteFieldRequest struct {
	Field ClearableUserField `json:"field" validate:"required"`
}

// Refs returns the back-reference set named by ref
func (u *User) Refs(ref UserRef) IDList {
	switch ref {
	case UserRefAppointments:
		return u.Appointments
	case UserRefPatients:
		return u.Patients
	case UserRefConsultations:
		return u.Consultations
	}
	return nil
}

// SetRefs replaces the back-reference set named by ref
func (u *User) SetRefs(ref UserRef, ids IDList) {
	switch ref {
	case UserRefAppointments:
		u.Appointments = ids
	case UserRefPatients:
		u.Patients = ids
	case UserRefConsultations:
		u.Consultations = ids
	}
}

// HasActiveSubscription reports whether the user passes the sign-in gate
// on subscription grounds alone
func (u *User) HasActiveSubscription() bool {
	t := u.Subscription.Type
	return t == SubscriptionActive || t == SubscriptionSinglePurchase
}
