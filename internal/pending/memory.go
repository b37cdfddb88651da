package pending

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rastreador-precos/internal/models"
)

// MemoryStore mantém os candidatos em memória, com expiração e limite de tamanho.
// Quando cheio, o candidato mais antigo é descartado.
type MemoryStore struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	order   *list.List // tokens do mais antigo para o mais novo
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	candidate models.Candidate
	expiresAt time.Time
	elem      *list.Element
}

// NewMemoryStore cria o armazenamento em memória
func NewMemoryStore(ttl time.Duration, maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, c models.Candidate) (string, error) {
	token := newToken()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	s.evictExpired(now)
	for len(s.entries) >= s.maxSize {
		s.remove(s.order.Front().Value.(string))
	}

	entry := &memoryEntry{candidate: c}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	entry.elem = s.order.PushBack(token)
	s.entries[token] = entry
	return token, nil
}

func (s *MemoryStore) Take(_ context.Context, token, ownerID string) (models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return models.Candidate{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.remove(token)
		return models.Candidate{}, ErrNotFound
	}
	// outro usuário não consome o candidato
	if entry.candidate.OwnerID != ownerID {
		return models.Candidate{}, ErrNotOwner
	}
	s.remove(token)
	return entry.candidate, nil
}

// Len retorna quantos candidatos estão guardados
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictExpired(now time.Time) {
	for e := s.order.Front(); e != nil; {
		next := e.Next()
		token := e.Value.(string)
		if exp := s.entries[token].expiresAt; !exp.IsZero() && !now.Before(exp) {
			s.remove(token)
		}
		e = next
	}
}

func (s *MemoryStore) remove(token string) {
	entry, ok := s.entries[token]
	if !ok {
		return
	}
	s.order.Remove(entry.elem)
	delete(s.entries, token)
}

// sem hífens para caber com folga no callback_data do Telegram (limite de 64 bytes)
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
