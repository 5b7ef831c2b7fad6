package repository

import (
	"context"
	"sync"
	"time"

	"github.com/picktime/picktime-api/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs local runs
// without POSTGRES_DSN and the service tests.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.User
	byName map[string]int64
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:   make(map[int64]domain.User),
		byName: make(map[string]int64),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[user.Username]; exists {
		return ErrConflict
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()
	r.byID[user.ID] = *user
	r.byName[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byName[username]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[username]
	return ok, nil
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

// MemoryVerificationRepository keeps verification codes with their expiry.
type MemoryVerificationRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	codes    map[string]memoryCode
	attempts map[string]memoryAttempts
}

type memoryAttempts struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryVerificationRepository returns an empty store. A nil now uses time.Now.
func NewMemoryVerificationRepository(now func() time.Time) *MemoryVerificationRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryVerificationRepository{
		now:      now,
		codes:    make(map[string]memoryCode),
		attempts: make(map[string]memoryAttempts),
	}
}

func (r *MemoryVerificationRepository) Save(_ context.Context, username, code string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[username] = memoryCode{code: code, expiresAt: r.now().Add(ttl)}
	delete(r.attempts, username)
	return nil
}

func (r *MemoryVerificationRepository) Get(_ context.Context, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[username]
	if !ok {
		return "", ErrNotFound
	}
	if !r.now().Before(entry.expiresAt) {
		delete(r.codes, username)
		return "", ErrNotFound
	}
	return entry.code, nil
}

func (r *MemoryVerificationRepository) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, username)
	delete(r.attempts, username)
	return nil
}

func (r *MemoryVerificationRepository) IncrementAttempts(_ context.Context, username string, ttl time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.attempts[username]
	if !ok || !r.now().Before(entry.expiresAt) {
		entry = memoryAttempts{expiresAt: r.now().Add(ttl)}
	}
	entry.count++
	r.attempts[username] = entry
	return entry.count, nil
}
