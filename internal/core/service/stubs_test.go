package service

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/auth-service/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubIdentityRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Identity
	clients map[string]*domain.Client // keyed by cpf
	err     error                     // if set, every lookup returns it
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{
		byID:    make(map[string]*domain.Identity),
		clients: make(map[string]*domain.Client),
	}
}

func (r *stubIdentityRepo) add(id *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *id
	r.byID[id.ID] = &clone
}

func (r *stubIdentityRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *stubIdentityRepo) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubIdentityRepo) FindClientByCPF(_ context.Context, cpf string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.clients[cpf]
	if !ok {
		return nil, domain.ErrCPFNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubIdentityRepo) FindLinkedUser(_ context.Context, ref string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Active && (u.ClientRef == ref || u.EmployeeRef == ref) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type stubRefreshRepo struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
	saveErr error
}

func newStubRefreshRepo() *stubRefreshRepo {
	return &stubRefreshRepo{records: make(map[string]domain.RefreshTokenRecord)}
}

func (r *stubRefreshRepo) Save(_ context.Context, rec *domain.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[rec.Token] = *rec
	return nil
}

func (r *stubRefreshRepo) FindValid(_ context.Context, token string) (*domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok || rec.Expired(time.Now()) {
		return nil, domain.ErrInvalidRefreshToken
	}
	return &rec, nil
}

func (r *stubRefreshRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, token)
	return nil
}

func (r *stubRefreshRepo) DeleteAllFor(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, rec := range r.records {
		if rec.SubjectID == subjectID {
			delete(r.records, tok)
		}
	}
	return nil
}

// Rotate mirrors the Mongo FindOneAndDelete + InsertOne sequence.
func (r *stubRefreshRepo) Rotate(_ context.Context, oldToken string, next *domain.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[oldToken]
	if !ok || rec.Expired(time.Now()) {
		return domain.ErrInvalidRefreshToken
	}
	delete(r.records, oldToken)
	r.records[next.Token] = *next
	return nil
}

func (r *stubRefreshRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *stubAudit) Record(e domain.AuthEvent) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

func (a *stubAudit) last() domain.AuthEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events[len(a.events)-1]
}
