package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// PgxPool is the pgx surface the store needs; *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore persists identities in the device-local Postgres with a
// pgvector embedding column. BestMatch orders by cosine distance in SQL
// so the scan stays in the database.
type PgStore struct {
	pool PgxPool
}

func NewPgStore(pool PgxPool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

func (s *PgStore) Put(ctx context.Context, identity *domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	query := `
		INSERT INTO identities (id, display_name, department, embedding, external_id, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    department = EXCLUDED.department,
		    embedding = EXCLUDED.embedding,
		    external_id = EXCLUDED.external_id,
		    updated_at = NOW()
		RETURNING enrolled_at, updated_at
	`

	vec := pgvector.NewVector([]float32(identity.Embedding))
	err := s.pool.QueryRow(ctx, query,
		identity.ID,
		identity.DisplayName,
		identity.Department,
		vec,
		identity.ExternalID,
	).Scan(&identity.EnrolledAt, &identity.UpdatedAt)

	if err != nil {
		return fmt.Errorf("put identity %s: %w", identity.ID, err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, identityID string) (*domain.Identity, error) {
	query := `
		SELECT id, display_name, department, embedding, external_id, enrolled_at, updated_at
		FROM identities
		WHERE id = $1
	`

	identity, err := scanIdentity(s.pool.QueryRow(ctx, query, identityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %s: %w", identityID, err)
	}
	return identity, nil
}

func (s *PgStore) All(ctx context.Context) (map[string]*domain.Identity, error) {
	query := `
		SELECT id, display_name, department, embedding, external_id, enrolled_at, updated_at
		FROM identities
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Identity)
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out[identity.ID] = identity
	}
	return out, rows.Err()
}

func (s *PgStore) Delete(ctx context.Context, identityID string) (bool, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, identityID)
	if err != nil {
		return false, fmt.Errorf("delete identity %s: %w", identityID, err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *PgStore) Exists(ctx context.Context, identityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE id = $1)`, identityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identity %s: %w", identityID, err)
	}
	return exists, nil
}

func (s *PgStore) BestMatch(ctx context.Context, query domain.Embedding) (Match, bool, error) {
	// <=> is cosine distance; similarity remaps it to the same [0,1]
	// scale the match decider uses. Rows whose embedding dimension does
	// not match the query are excluded rather than erroring the scan.
	sql := `
		SELECT id, (2 - (embedding <=> $1)) / 2 AS similarity
		FROM identities
		WHERE vector_dims(embedding) = $2
		ORDER BY embedding <=> $1
		LIMIT 1
	`

	vec := pgvector.NewVector([]float32(query))

	var m Match
	err := s.pool.QueryRow(ctx, sql, vec, query.Dim()).Scan(&m.IdentityID, &m.Similarity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, false, nil
	}
	if err != nil {
		return Match{}, false, fmt.Errorf("best match: %w", err)
	}
	return m, true, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	var identity domain.Identity
	var embedding pgvector.Vector

	err := row.Scan(
		&identity.ID,
		&identity.DisplayName,
		&identity.Department,
		&embedding,
		&identity.ExternalID,
		&identity.EnrolledAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	identity.Embedding = domain.Embedding(embedding.Slice())
	return &identity, nil
}
