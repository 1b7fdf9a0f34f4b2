// Package identity persists one embedding per enrolled identity and
// answers best-match queries across the whole enrollment.
package identity

import (
	"context"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Match is the winner of a best-match scan.
type Match struct {
	IdentityID string
	Similarity float64
}

// Store is the enrolled-identity store. The best-match scan is O(n)
// over enrolled identities; device-local populations are small and the
// full scan is what lets verification check the global-top-match
// invariant.
type Store interface {
	// Put enrolls or re-enrolls an identity. Re-enrollment replaces the
	// embedding whole.
	Put(ctx context.Context, identity *domain.Identity) error

	// Get returns the identity or domain.ErrIdentityNotFound.
	Get(ctx context.Context, identityID string) (*domain.Identity, error)

	// All returns every enrolled identity keyed by id.
	All(ctx context.Context) (map[string]*domain.Identity, error)

	// Delete reports whether the identity existed.
	Delete(ctx context.Context, identityID string) (bool, error)

	// Exists reports whether the identity is enrolled.
	Exists(ctx context.Context, identityID string) (bool, error)

	// BestMatch returns the single highest-similarity identity for the
	// query embedding, or ok=false when the store is empty. Stored
	// embeddings with a different dimension than the query are skipped,
	// not fatal.
	BestMatch(ctx context.Context, query domain.Embedding) (Match, bool, error)
}
