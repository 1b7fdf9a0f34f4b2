package identity

import (
	"context"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/match"
)

// MemStore is the in-memory Store used in tests and on devices that run
// without a local database. Writes are atomic per identity: readers see
// either the old or the new embedding, never a partial one.
type MemStore struct {
	mu         sync.RWMutex
	identities map[string]*domain.Identity
}

func NewMemStore() *MemStore {
	return &MemStore{identities: make(map[string]*domain.Identity)}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) Put(_ context.Context, identity *domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	stored := cloneIdentity(identity)
	now := time.Now().UTC()
	stored.UpdatedAt = now
	if stored.EnrolledAt.IsZero() {
		stored.EnrolledAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.identities[stored.ID]; ok {
		stored.EnrolledAt = existing.EnrolledAt
	}
	s.identities[stored.ID] = stored
	return nil
}

func (s *MemStore) Get(_ context.Context, identityID string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return cloneIdentity(identity), nil
}

func (s *MemStore) All(_ context.Context) (map[string]*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Identity, len(s.identities))
	for id, identity := range s.identities {
		out[id] = cloneIdentity(identity)
	}
	return out, nil
}

func (s *MemStore) Delete(_ context.Context, identityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.identities[identityID]
	delete(s.identities, identityID)
	return ok, nil
}

func (s *MemStore) Exists(_ context.Context, identityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.identities[identityID]
	return ok, nil
}

func (s *MemStore) BestMatch(_ context.Context, query domain.Embedding) (Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Match
	found := false
	for id, identity := range s.identities {
		if identity.Embedding.Dim() != query.Dim() {
			continue
		}
		sim := match.Similarity(query, identity.Embedding)
		if !found || sim > best.Similarity {
			best = Match{IdentityID: id, Similarity: sim}
			found = true
		}
	}
	return best, found, nil
}

func cloneIdentity(in *domain.Identity) *domain.Identity {
	out := *in
	out.Embedding = append(domain.Embedding(nil), in.Embedding...)
	if in.ExternalID != nil {
		ext := *in.ExternalID
		out.ExternalID = &ext
	}
	return &out
}
