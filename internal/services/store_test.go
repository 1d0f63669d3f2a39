package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cicalumni/alumni-api/internal/models"
)

// memoryStore is an in-memory credential store. It hands out copies so tests
// observe only what was saved.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	seq      int

	failNext error
	updates  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*models.Account)}
}

func clone(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (m *memoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memoryStore) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	for _, a := range m.accounts {
		if match(a) {
			return clone(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memoryStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email })
}

func (m *memoryStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Username == username })
}

func (m *memoryStore) GetByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.VerificationToken != nil && *a.VerificationToken == token })
}

func (m *memoryStore) GetByResetToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ResetToken != nil && *a.ResetToken == token })
}

func (m *memoryStore) FindIdentityConflict(ctx context.Context, email, phone, username string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.Email == email || a.Username == username || (phone != "" && a.Phone != nil && *a.Phone == phone)
	})
}

func (m *memoryStore) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return nil, models.NewError(models.ErrConflict, "Email already exists")
		}
	}
	m.seq++
	a.ID = fmt.Sprintf("acc-%d", m.seq)
	a.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = clone(a)
	return clone(a), nil
}

func (m *memoryStore) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := m.accounts[a.ID]; !ok {
		return nil, models.ErrNotFound
	}
	m.updates++
	m.accounts[a.ID] = clone(a)
	return clone(a), nil
}

func (m *memoryStore) RotateRefreshToken(ctx context.Context, id, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.RefreshToken == nil || *a.RefreshToken != expected {
		return models.ErrNotFound
	}
	a.RefreshToken = &next
	return nil
}

func (m *memoryStore) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		all = append(all, clone(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []*models.Account{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// stored returns the persisted state of id.
func (m *memoryStore) stored(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.accounts[id])
}

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingMailer) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}
	}
	return r.sent[len(r.sent)-1]
}

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
