package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
)

func seedUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: "Dr. Test", PasswordHash: "hash"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "ana@example.com")

	err := s.Users().Create(context.Background(), &model.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserGetByEmail_IgnoresCase(t *testing.T) {
	s := NewStore()
	u := seedUser(t, s, "Ana@Example.com")

	got, err := s.Users().GetByEmail(context.Background(), "ana@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Users().GetByEmail(context.Background(), "luis@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserGet_ReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Test", again.Name)
	assert.Equal(t, model.SubscriptionInactive, again.Subscription.Type)
}

func TestUserUpdate_KeepsRefsAndSubscription(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	patientID := uuid.New()
	subID := "I-123"

	require.NoError(t, s.Users().PushRef(ctx, u.ID, model.UserRefPatients, patientID))
	require.NoError(t, s.Users().UpdateSubscription(ctx, u.ID, model.Subscription{
		Type: model.SubscriptionActive, SubscriptionID: &subID,
	}))

	u.Name = "Ana"
	u.Patients = nil
	require.NoError(t, s.Users().Update(ctx, u))

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, model.IDList{patientID}, got.Patients)
	assert.Equal(t, model.SubscriptionActive, got.Subscription.Type)

	bySub, err := s.Users().GetBySubscriptionID(ctx, "I-123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, bySub.ID)
}

func TestPushRef_Deduplicates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	child := uuid.New()

	require.NoError(t, s.Users().PushRef(ctx, u.ID, model.UserRefAppointments, child))
	require.NoError(t, s.Users().PushRef(ctx, u.ID, model.UserRefAppointments, child))

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IDList{child}, got.Appointments)

	require.NoError(t, s.Users().PullRef(ctx, u.ID, model.UserRefAppointments, child))
	got, err = s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Appointments)

	assert.Error(t, s.Users().PushRef(ctx, u.ID, model.UserRef("email"), child))
}

func TestPatientListByIDs_KeepsOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")

	var ids []uuid.UUID
	for _, name := range []string{"a", "b", "c"} {
		p := &model.Patient{UserID: u.ID, Name: name}
		require.NoError(t, s.Patients().Create(ctx, p))
		ids = append(ids, p.ID)
	}

	list, err := s.Patients().ListByIDs(ctx, []uuid.UUID{ids[2], uuid.New(), ids[0]})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Name)
	assert.Equal(t, "a", list[1].Name)
}

func TestAppointmentListByPatient_InsertionOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	userID, patientID := uuid.New(), uuid.New()

	for _, reason := range []string{"first", "second", "third"} {
		require.NoError(t, s.Appointments().Create(ctx, &model.Appointment{
			UserID: userID, PatientID: patientID, Reason: reason,
		}))
	}
	require.NoError(t, s.Appointments().Create(ctx, &model.Appointment{UserID: userID, PatientID: uuid.New()}))

	list, err := s.Appointments().ListByPatient(ctx, patientID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Reason)
	assert.Equal(t, "third", list[2].Reason)
	assert.Equal(t, model.AppointmentStatusWaiting, list[0].Status)
}

func TestAppointmentCompleteAndClear(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := &model.Appointment{UserID: uuid.New(), PatientID: uuid.New()}
	require.NoError(t, s.Appointments().Create(ctx, a))
	consultationID := uuid.New()

	require.NoError(t, s.Appointments().Complete(ctx, a.ID, consultationID))
	got, err := s.Appointments().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)
	require.NotNil(t, got.ConsultationID)
	assert.Equal(t, consultationID, *got.ConsultationID)

	require.NoError(t, s.Appointments().ClearConsultation(ctx, consultationID))
	got, err = s.Appointments().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ConsultationID)

	err = s.Appointments().Complete(ctx, uuid.New(), consultationID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	other := &model.Appointment{UserID: uuid.New(), PatientID: uuid.New()}
	require.NoError(t, s.Appointments().Create(ctx, other))
	require.NoError(t, s.Appointments().LinkConsultation(ctx, other.ID, consultationID))
	got, err = s.Appointments().Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusWaiting, got.Status)
	assert.Equal(t, consultationID, *got.ConsultationID)

	err = s.Appointments().LinkConsultation(ctx, uuid.New(), consultationID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx repository.Store) error {
		p := &model.Patient{UserID: u.ID, Name: "P"}
		require.NoError(t, tx.Patients().Create(ctx, p))
		require.NoError(t, tx.Users().PushRef(ctx, u.ID, model.UserRefPatients, p.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Patients)
	n, err := s.Patients().DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTx_CommitsAndNests(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "ana@example.com")

	err := s.WithTx(ctx, func(tx repository.Store) error {
		return tx.WithTx(ctx, func(inner repository.Store) error {
			return inner.Users().PushRef(ctx, u.ID, model.UserRefPatients, uuid.New())
		})
	})
	require.NoError(t, err)

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.Patients, 1)
}

func TestOutbox_Lifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	event, err := model.NewOutboxEvent(model.EventPatientCreated, uuid.New(), uuid.New(), map[string]string{"name": "P"})
	require.NoError(t, err)
	require.NoError(t, s.Outbox().Create(ctx, event))

	pending, err := s.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Outbox().MarkFailed(ctx, event.ID, "redis down", 2))
	pending, err = s.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	require.NoError(t, s.Outbox().MarkFailed(ctx, event.ID, "redis down", 2))
	pending, err = s.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
