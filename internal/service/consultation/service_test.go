package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository/memory"
	"github.com/medelle/practice-api/internal/service/integrity"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/validator"
)

type fixture struct {
	ctx   context.Context
	svc   *Service
	coord *integrity.Coordinator
	store *memory.Store
	user  *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	user := &model.User{Email: "doc@example.com", Name: "Doc"}
	require.NoError(t, store.Users().Create(ctx, user))
	coord := integrity.NewCoordinator(store)
	return &fixture{
		ctx:   ctx,
		svc:   NewService(store, coord, validator.New()),
		coord: coord,
		store: store,
		user:  user,
	}
}

func (f *fixture) patient(t *testing.T, userID uuid.UUID) *model.Patient {
	t.Helper()
	p := &model.Patient{UserID: userID, Name: "Ana"}
	require.NoError(t, f.coord.CreatePatient(f.ctx, p))
	return p
}

func (f *fixture) appointment(t *testing.T, userID, patientID uuid.UUID) *model.Appointment {
	t.Helper()
	a := &model.Appointment{UserID: userID, PatientID: patientID, DateTime: time.Now()}
	require.NoError(t, f.coord.CreateAppointment(f.ctx, a))
	return a
}

func request(patientID uuid.UUID, appointmentID *uuid.UUID) *model.CreateConsultationRequest {
	return &model.CreateConsultationRequest{
		Reason:        "pain",
		Symptoms:      "fever",
		Diagnosis:     "flu",
		Treatment:     "rest",
		PatientID:     &patientID,
		AppointmentID: appointmentID,
	}
}

func TestCreate_CompletesAppointment(t *testing.T) {
	f := setup(t)
	p := f.patient(t, f.user.ID)
	a := f.appointment(t, f.user.ID, p.ID)

	c, err := f.svc.Create(f.ctx, f.user.ID, request(p.ID, &a.ID))
	require.NoError(t, err)
	require.NotNil(t, c.AppointmentID)
	assert.Equal(t, a.ID, *c.AppointmentID)

	stored, err := f.store.Appointments().Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
	require.NotNil(t, stored.ConsultationID)
	assert.Equal(t, c.ID, *stored.ConsultationID)
}

func TestCreate_Rejects(t *testing.T) {
	f := setup(t)
	p := f.patient(t, f.user.ID)

	req := request(p.ID, nil)
	req.Diagnosis = ""
	_, err := f.svc.Create(f.ctx, f.user.ID, req)
	require.Error(t, err)
	assert.Equal(t, validator.MissingFieldsMessage, err.Error())

	missing := uuid.New()
	_, err = f.svc.Create(f.ctx, f.user.ID, request(p.ID, &missing))
	require.Error(t, err)
	assert.Equal(t, msgInvalidAppointmentID, err.Error())

	other := &model.User{Email: "other@example.com", Name: "Other"}
	require.NoError(t, f.store.Users().Create(f.ctx, other))
	foreignPatient := f.patient(t, other.ID)
	foreign := f.appointment(t, other.ID, foreignPatient.ID)

	_, err = f.svc.Create(f.ctx, f.user.ID, request(p.ID, &foreign.ID))
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = f.svc.Create(f.ctx, f.user.ID, request(foreignPatient.ID, nil))
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	u, err := f.store.Users().Get(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Consultations)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	first := f.patient(t, f.user.ID)
	second := f.patient(t, f.user.ID)
	c, err := f.svc.Create(f.ctx, f.user.ID, request(first.ID, nil))
	require.NoError(t, err)

	treatment := "antibiotics"
	updated, err := f.svc.Update(f.ctx, f.user.ID, c.ID, &model.UpdateConsultationRequest{
		Treatment:         &treatment,
		PatientID:         &second.ID,
		LaboratoryStudies: &model.Studies{Description: "blood"},
	})
	require.NoError(t, err)
	assert.Equal(t, "antibiotics", updated.Treatment)
	assert.Equal(t, "flu", updated.Diagnosis)
	assert.Equal(t, "blood", updated.LaboratoryStudies.Description)

	forSecond, err := f.svc.ListForPatient(f.ctx, f.user.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, forSecond, 1)
	assert.Equal(t, c.ID, forSecond[0].ID)

	forFirst, err := f.svc.ListForPatient(f.ctx, f.user.ID, first.ID)
	require.NoError(t, err)
	assert.Empty(t, forFirst)
}

func TestDelete_UnlinksAppointment(t *testing.T) {
	f := setup(t)
	p := f.patient(t, f.user.ID)
	a := f.appointment(t, f.user.ID, p.ID)
	c, err := f.svc.Create(f.ctx, f.user.ID, request(p.ID, &a.ID))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(f.ctx, f.user.ID, c.ID))

	stored, err := f.store.Appointments().Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ConsultationID)

	err = f.svc.Delete(f.ctx, f.user.ID, c.ID)
	require.Error(t, err)
	assert.Equal(t, msgInvalidConsultationID, err.Error())
}

func TestListForUser(t *testing.T) {
	f := setup(t)
	p := f.patient(t, f.user.ID)
	_, err := f.svc.Create(f.ctx, f.user.ID, request(p.ID, nil))
	require.NoError(t, err)

	views, err := f.svc.ListForUser(f.ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Patient)
	assert.Equal(t, p.ID, views[0].Patient.ID)
}

func TestAppointmentMustBelongToPatient(t *testing.T) {
	f := setup(t)
	ana := f.patient(t, f.user.ID)
	luis := f.patient(t, f.user.ID)
	anaAppt := f.appointment(t, f.user.ID, ana.ID)

	_, err := f.svc.Create(f.ctx, f.user.ID, request(luis.ID, &anaAppt.ID))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, msgInvalidAppointmentID, err.Error())

	linked, err := f.svc.Create(f.ctx, f.user.ID, request(ana.ID, &anaAppt.ID))
	require.NoError(t, err)

	// moving the consultation to another patient while it keeps the link
	_, err = f.svc.Update(f.ctx, f.user.ID, linked.ID, &model.UpdateConsultationRequest{PatientID: &luis.ID})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	plain, err := f.svc.Create(f.ctx, f.user.ID, request(luis.ID, nil))
	require.NoError(t, err)
	_, err = f.svc.Update(f.ctx, f.user.ID, plain.ID, &model.UpdateConsultationRequest{AppointmentID: &anaAppt.ID})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	stored, err := f.store.Consultations().Get(f.ctx, plain.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AppointmentID)
}

func TestUpdate_MovesAppointmentLink(t *testing.T) {
	f := setup(t)
	p := f.patient(t, f.user.ID)
	first := f.appointment(t, f.user.ID, p.ID)
	second := f.appointment(t, f.user.ID, p.ID)

	c, err := f.svc.Create(f.ctx, f.user.ID, request(p.ID, &first.ID))
	require.NoError(t, err)

	updated, err := f.svc.Update(f.ctx, f.user.ID, c.ID, &model.UpdateConsultationRequest{AppointmentID: &second.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.AppointmentID)
	assert.Equal(t, second.ID, *updated.AppointmentID)

	old, err := f.store.Appointments().Get(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, old.ConsultationID)
	assert.Equal(t, model.AppointmentStatusCompleted, old.Status)

	moved, err := f.store.Appointments().Get(f.ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.ConsultationID)
	assert.Equal(t, c.ID, *moved.ConsultationID)
	assert.Equal(t, model.AppointmentStatusWaiting, moved.Status)
}
