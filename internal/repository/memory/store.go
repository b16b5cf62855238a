// Package memory provides an in-memory repository.Store. Transactions are
// serialised behind a single mutex and rolled back by restoring a snapshot
// of the state taken when the transaction began.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
)

type state struct {
	users         map[uuid.UUID]*model.User
	patients      map[uuid.UUID]*model.Patient
	appointments  map[uuid.UUID]*model.Appointment
	consultations map[uuid.UUID]*model.Consultation
	outbox        []*model.OutboxEvent
	// insertion sequence, used for stable listing order
	seq   int64
	order map[uuid.UUID]int64
}

func newState() *state {
	return &state{
		users:         map[uuid.UUID]*model.User{},
		patients:      map[uuid.UUID]*model.Patient{},
		appointments:  map[uuid.UUID]*model.Appointment{},
		consultations: map[uuid.UUID]*model.Consultation{},
		order:         map[uuid.UUID]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:         make(map[uuid.UUID]*model.User, len(s.users)),
		patients:      make(map[uuid.UUID]*model.Patient, len(s.patients)),
		appointments:  make(map[uuid.UUID]*model.Appointment, len(s.appointments)),
		consultations: make(map[uuid.UUID]*model.Consultation, len(s.consultations)),
		outbox:        make([]*model.OutboxEvent, 0, len(s.outbox)),
		seq:           s.seq,
		order:         make(map[uuid.UUID]int64, len(s.order)),
	}
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range s.patients {
		c.patients[k] = clonePatient(v)
	}
	for k, v := range s.appointments {
		c.appointments[k] = cloneAppointment(v)
	}
	for k, v := range s.consultations {
		c.consultations[k] = cloneConsultation(v)
	}
	for _, e := range s.outbox {
		c.outbox = append(c.outbox, cloneEvent(e))
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	return c
}

func (s *state) track(id uuid.UUID) {
	s.seq++
	s.order[id] = s.seq
}

// Store is a repository.Store kept entirely in memory
type Store struct {
	mu   *sync.Mutex
	root **state
	inTx bool
}

func NewStore() *Store {
	st := newState()
	return &Store{mu: &sync.Mutex{}, root: &st}
}

// lock guards a single operation. Inside a transaction the mutex is
// already held.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) data() *state {
	return *s.root
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{store: s}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{store: s}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{store: s}
}

func (s *Store) Consultations() repository.ConsultationRepository {
	return &consultationRepository{store: s}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{store: s}
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data().clone()
	tx := &Store{mu: s.mu, root: s.root, inTx: true}

	defer func() {
		if p := recover(); p != nil {
			*s.root = snapshot
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		*s.root = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneIDs(l model.IDList) model.IDList {
	if l == nil {
		return nil
	}
	return append(model.IDList{}, l...)
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.Subscription.SubscriptionID != nil {
		v := *u.Subscription.SubscriptionID
		c.Subscription.SubscriptionID = &v
	}
	if u.Subscription.DueDate != nil {
		v := *u.Subscription.DueDate
		c.Subscription.DueDate = &v
	}
	c.Appointments = cloneIDs(u.Appointments)
	c.Patients = cloneIDs(u.Patients)
	c.Consultations = cloneIDs(u.Consultations)
	return &c
}

func clonePatient(p *model.Patient) *model.Patient {
	c := *p
	if p.DateOfBirth != nil {
		v := *p.DateOfBirth
		c.DateOfBirth = &v
	}
	c.Appointments = cloneIDs(p.Appointments)
	c.Consultations = cloneIDs(p.Consultations)
	return &c
}

func cloneAppointment(a *model.Appointment) *model.Appointment {
	c := *a
	c.ConsultationID = cloneUUID(a.ConsultationID)
	return &c
}

func cloneStudies(s *model.Studies) *model.Studies {
	if s == nil {
		return nil
	}
	c := *s
	c.Images = append([]string(nil), s.Images...)
	return &c
}

func cloneConsultation(cn *model.Consultation) *model.Consultation {
	c := *cn
	c.LaboratoryStudies = cloneStudies(cn.LaboratoryStudies)
	c.ImagesStudies = cloneStudies(cn.ImagesStudies)
	if cn.GynecologicalInformation != nil {
		g := *cn.GynecologicalInformation
		c.GynecologicalInformation = &g
	}
	c.AppointmentID = cloneUUID(cn.AppointmentID)
	return &c
}

func cloneEvent(e *model.OutboxEvent) *model.OutboxEvent {
	c := *e
	c.Payload = append(model.RawJSON(nil), e.Payload...)
	if e.ErrorMessage != nil {
		v := *e.ErrorMessage
		c.ErrorMessage = &v
	}
	if e.ProcessedAt != nil {
		v := *e.ProcessedAt
		c.ProcessedAt = &v
	}
	return &c
}
