package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
)

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func checkUserRef(ref model.UserRef) error {
	switch ref {
	case model.UserRefAppointments, model.UserRefPatients, model.UserRefConsultations:
		return nil
	}
	return fmt.Errorf("unknown user reference %q", ref)
}

func checkPatientRef(ref model.PatientRef) error {
	switch ref {
	case model.PatientRefAppointments, model.PatientRefConsultations:
		return nil
	}
	return fmt.Errorf("unknown patient reference %q", ref)
}

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	defer r.store.lock()()
	st := r.store.data()

	for _, u := range st.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user: %w", repository.ErrDuplicate)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.Subscription.Type == "" {
		user.Subscription.Type = model.SubscriptionInactive
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	st.users[user.ID] = cloneUser(user)
	st.track(user.ID)
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.store.lock()()
	u, ok := r.store.data().users[id]
	if !ok {
		return nil, notFound("get user")
	}
	return cloneUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.store.lock()()
	for _, u := range r.store.data().users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, notFound("get user by email")
}

func (r *userRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.User, error) {
	defer r.store.lock()()
	for _, u := range r.store.data().users {
		if u.Subscription.SubscriptionID != nil && *u.Subscription.SubscriptionID == subscriptionID {
			return cloneUser(u), nil
		}
	}
	return nil, notFound("get user by subscription")
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	defer r.store.lock()()
	st := r.store.data()

	cur, ok := st.users[user.ID]
	if !ok {
		return notFound("update user")
	}
	for id, u := range st.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("update user: %w", repository.ErrDuplicate)
		}
	}

	next := cloneUser(user)
	next.Subscription = cur.Subscription
	next.Appointments = cur.Appointments
	next.Patients = cur.Patients
	next.Consultations = cur.Consultations
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	user.UpdatedAt = next.UpdatedAt
	st.users[user.ID] = next
	return nil
}

func (r *userRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription) error {
	defer r.store.lock()()
	u, ok := r.store.data().users[id]
	if !ok {
		return notFound("update subscription")
	}
	tmp := cloneUser(&model.User{Subscription: sub})
	u.Subscription = tmp.Subscription
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock()()
	st := r.store.data()
	if _, ok := st.users[id]; !ok {
		return notFound("delete user")
	}
	delete(st.users, id)
	delete(st.order, id)
	return nil
}

func (r *userRepository) PushRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error {
	if err := checkUserRef(ref); err != nil {
		return err
	}
	defer r.store.lock()()
	u, ok := r.store.data().users[id]
	if !ok {
		return nil
	}
	refs := u.Refs(ref)
	if !refs.Contains(childID) {
		u.SetRefs(ref, append(refs, childID))
	}
	return nil
}

func (r *userRepository) PullRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error {
	if err := checkUserRef(ref); err != nil {
		return err
	}
	defer r.store.lock()()
	u, ok := r.store.data().users[id]
	if !ok {
		return nil
	}
	u.SetRefs(ref, u.Refs(ref).Without(childID))
	return nil
}

type patientRepository struct {
	store *Store
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	defer r.store.lock()()
	st := r.store.data()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	if patient.Appointments == nil {
		patient.Appointments = model.IDList{}
	}
	if patient.Consultations == nil {
		patient.Consultations = model.IDList{}
	}

	st.patients[patient.ID] = clonePatient(patient)
	st.track(patient.ID)
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	defer r.store.lock()()
	p, ok := r.store.data().patients[id]
	if !ok {
		return nil, notFound("get patient")
	}
	return clonePatient(p), nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	defer r.store.lock()()
	st := r.store.data()

	cur, ok := st.patients[patient.ID]
	if !ok {
		return notFound("update patient")
	}
	next := clonePatient(patient)
	next.UserID = cur.UserID
	next.Appointments = cur.Appointments
	next.Consultations = cur.Consultations
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	patient.UpdatedAt = next.UpdatedAt
	st.patients[patient.ID] = next
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock()()
	st := r.store.data()
	if _, ok := st.patients[id]; !ok {
		return notFound("delete patient")
	}
	delete(st.patients, id)
	delete(st.order, id)
	return nil
}

func (r *patientRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	defer r.store.lock()()
	st := r.store.data()

	out := make([]*model.Patient, 0, len(ids))
	for _, id := range ids {
		if p, ok := st.patients[id]; ok {
			out = append(out, clonePatient(p))
		}
	}
	return out, nil
}

func (r *patientRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.store.lock()()
	st := r.store.data()

	var n int64
	for id, p := range st.patients {
		if p.UserID == userID {
			delete(st.patients, id)
			delete(st.order, id)
			n++
		}
	}
	return n, nil
}

func (r *patientRepository) PushRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error {
	if err := checkPatientRef(ref); err != nil {
		return err
	}
	defer r.store.lock()()
	p, ok := r.store.data().patients[id]
	if !ok {
		return nil
	}
	refs := p.Refs(ref)
	if !refs.Contains(childID) {
		p.SetRefs(ref, append(refs, childID))
	}
	return nil
}

func (r *patientRepository) PullRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error {
	if err := checkPatientRef(ref); err != nil {
		return err
	}
	defer r.store.lock()()
	p, ok := r.store.data().patients[id]
	if !ok {
		return nil
	}
	p.SetRefs(ref, p.Refs(ref).Without(childID))
	return nil
}

type appointmentRepository struct {
	store *Store
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	defer r.store.lock()()
	st := r.store.data()

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusWaiting
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	st.appointments[appointment.ID] = cloneAppointment(appointment)
	st.track(appointment.ID)
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	defer r.store.lock()()
	a, ok := r.store.data().appointments[id]
	if !ok {
		return nil, notFound("get appointment")
	}
	return cloneAppointment(a), nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	defer r.store.lock()()
	st := r.store.data()

	cur, ok := st.appointments[appointment.ID]
	if !ok {
		return notFound("update appointment")
	}
	next := cloneAppointment(appointment)
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	appointment.UpdatedAt = next.UpdatedAt
	st.appointments[appointment.ID] = next
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock()()
	st := r.store.data()
	if _, ok := st.appointments[id]; !ok {
		return notFound("delete appointment")
	}
	delete(st.appointments, id)
	delete(st.order, id)
	return nil
}

func (r *appointmentRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Appointment, error) {
	defer r.store.lock()()
	st := r.store.data()

	out := make([]*model.Appointment, 0, len(ids))
	for _, id := range ids {
		if a, ok := st.appointments[id]; ok {
			out = append(out, cloneAppointment(a))
		}
	}
	return out, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	defer r.store.lock()()
	st := r.store.data()

	out := []*model.Appointment{}
	for _, a := range st.appointments {
		if a.PatientID == patientID {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return st.order[out[i].ID] < st.order[out[j].ID] })
	return out, nil
}

func (r *appointmentRepository) Complete(ctx context.Context, id, consultationID uuid.UUID) error {
	defer r.store.lock()()
	a, ok := r.store.data().appointments[id]
	if !ok {
		return notFound("complete appointment")
	}
	a.Status = model.AppointmentStatusCompleted
	a.ConsultationID = cloneUUID(&consultationID)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *appointmentRepository) LinkConsultation(ctx context.Context, id, consultationID uuid.UUID) error {
	defer r.store.lock()()
	a, ok := r.store.data().appointments[id]
	if !ok {
		return notFound("link appointment consultation")
	}
	a.ConsultationID = cloneUUID(&consultationID)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *appointmentRepository) ClearConsultation(ctx context.Context, consultationID uuid.UUID) error {
	defer r.store.lock()()
	for _, a := range r.store.data().appointments {
		if a.ConsultationID != nil && *a.ConsultationID == consultationID {
			a.ConsultationID = nil
			a.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r *appointmentRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.store.lock()()
	st := r.store.data()

	var n int64
	for id, a := range st.appointments {
		if a.UserID == userID {
			delete(st.appointments, id)
			delete(st.order, id)
			n++
		}
	}
	return n, nil
}

type consultationRepository struct {
	store *Store
}

func (r *consultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	defer r.store.lock()()
	st := r.store.data()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	st.consultations[c.ID] = cloneConsultation(c)
	st.track(c.ID)
	return nil
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	defer r.store.lock()()
	c, ok := r.store.data().consultations[id]
	if !ok {
		return nil, notFound("get consultation")
	}
	return cloneConsultation(c), nil
}

func (r *consultationRepository) Update(ctx context.Context, c *model.Consultation) error {
	defer r.store.lock()()
	st := r.store.data()

	cur, ok := st.consultations[c.ID]
	if !ok {
		return notFound("update consultation")
	}
	next := cloneConsultation(c)
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	c.UpdatedAt = next.UpdatedAt
	st.consultations[c.ID] = next
	return nil
}

func (r *consultationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock()()
	st := r.store.data()
	if _, ok := st.consultations[id]; !ok {
		return notFound("delete consultation")
	}
	delete(st.consultations, id)
	delete(st.order, id)
	return nil
}

func (r *consultationRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Consultation, error) {
	defer r.store.lock()()
	st := r.store.data()

	out := make([]*model.Consultation, 0, len(ids))
	for _, id := range ids {
		if c, ok := st.consultations[id]; ok {
			out = append(out, cloneConsultation(c))
		}
	}
	return out, nil
}

func (r *consultationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	defer r.store.lock()()
	st := r.store.data()

	out := []*model.Consultation{}
	for _, c := range st.consultations {
		if c.PatientID == patientID {
			out = append(out, cloneConsultation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return st.order[out[i].ID] < st.order[out[j].ID] })
	return out, nil
}

func (r *consultationRepository) ClearAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	defer r.store.lock()()
	for _, c := range r.store.data().consultations {
		if c.AppointmentID != nil && *c.AppointmentID == appointmentID {
			c.AppointmentID = nil
			c.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r *consultationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.store.lock()()
	st := r.store.data()

	var n int64
	for id, c := range st.consultations {
		if c.UserID == userID {
			delete(st.consultations, id)
			delete(st.order, id)
			n++
		}
	}
	return n, nil
}

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	defer r.store.lock()()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.Status = model.OutboxStatusPending

	st := r.store.data()
	st.outbox = append(st.outbox, cloneEvent(event))
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	defer r.store.lock()()

	out := []*model.OutboxEvent{}
	for _, e := range r.store.data().outbox {
		if len(out) >= limit {
			break
		}
		if e.Status == model.OutboxStatusPending {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

func (r *outboxRepository) find(id uuid.UUID) *model.OutboxEvent {
	for _, e := range r.store.data().outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	defer r.store.lock()()
	e := r.find(id)
	if e == nil {
		return notFound("mark event processed")
	}
	now := time.Now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ErrorMessage = nil
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error {
	defer r.store.lock()()
	e := r.find(id)
	if e == nil {
		return notFound("mark event failed")
	}
	e.RetryCount++
	e.ErrorMessage = &errMsg
	if e.RetryCount >= maxRetries {
		e.Status = model.OutboxStatusFailed
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.store.lock()()
	st := r.store.data()

	kept := st.outbox[:0]
	var n int64
	for _, e := range st.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	st.outbox = kept
	return n, nil
}
