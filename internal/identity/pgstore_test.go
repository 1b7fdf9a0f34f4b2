package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func newPgMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestPgStore_Put(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		identity  *domain.Identity
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name:     "successful enrollment",
			identity: enrolled("emp-1", []float32{1, 0, 0, 0}),
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO identities`).
					WithArgs("emp-1", "Person emp-1", "engineering",
						pgvector.NewVector([]float32{1, 0, 0, 0}), (*string)(nil)).
					WillReturnRows(pgxmock.NewRows([]string{"enrolled_at", "updated_at"}).AddRow(now, now))
			},
		},
		{
			name:      "validation failure short-circuits",
			identity:  &domain.Identity{ID: "emp-1"},
			mockSetup: func(mock pgxmock.PgxPoolIface) {},
			wantErr:   domain.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newPgMock(t)
			tt.mockSetup(mock)

			store := NewPgStore(mock)
			err := store.Put(context.Background(), tt.identity)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, now, tt.identity.EnrolledAt)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgStore_Get(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "display_name", "department", "embedding", "external_id", "enrolled_at", "updated_at",
				}).AddRow("emp-1", "Person emp-1", "engineering",
					pgvector.NewVector([]float32{1, 0, 0, 0}), (*string)(nil), now, now)
				mock.ExpectQuery(`SELECT id, display_name`).WithArgs("emp-1").WillReturnRows(rows)
			},
		},
		{
			name: "not found maps to domain error",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, display_name`).WithArgs("emp-1").WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrIdentityNotFound,
		},
		{
			name: "database failure",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, display_name`).WithArgs("emp-1").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newPgMock(t)
			tt.mockSetup(mock)

			store := NewPgStore(mock)
			got, err := store.Get(context.Background(), "emp-1")

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, domain.ErrIdentityNotFound) {
					assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, "emp-1", got.ID)
				assert.Equal(t, domain.Embedding{1, 0, 0, 0}, got.Embedding)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgStore_BestMatch(t *testing.T) {
	query := domain.Normalize([]float32{1, 0, 0, 0})

	t.Run("returns top identity", func(t *testing.T) {
		mock := newPgMock(t)
		rows := pgxmock.NewRows([]string{"id", "similarity"}).AddRow("emp-2", 0.93)
		mock.ExpectQuery(`ORDER BY embedding`).
			WithArgs(pgvector.NewVector([]float32(query)), 4).
			WillReturnRows(rows)

		store := NewPgStore(mock)
		best, found, err := store.BestMatch(context.Background(), query)

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "emp-2", best.IdentityID)
		assert.InDelta(t, 0.93, best.Similarity, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty store reports no match", func(t *testing.T) {
		mock := newPgMock(t)
		mock.ExpectQuery(`ORDER BY embedding`).
			WithArgs(pgvector.NewVector([]float32(query)), 4).
			WillReturnError(pgx.ErrNoRows)

		store := NewPgStore(mock)
		_, found, err := store.BestMatch(context.Background(), query)

		require.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgStore_Delete(t *testing.T) {
	t.Run("existing row", func(t *testing.T) {
		mock := newPgMock(t)
		mock.ExpectExec(`DELETE FROM identities`).WithArgs("emp-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		store := NewPgStore(mock)
		deleted, err := store.Delete(context.Background(), "emp-1")

		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock := newPgMock(t)
		mock.ExpectExec(`DELETE FROM identities`).WithArgs("ghost").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		store := NewPgStore(mock)
		deleted, err := store.Delete(context.Background(), "ghost")

		require.NoError(t, err)
		assert.False(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgStore_Exists(t *testing.T) {
	mock := newPgMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewPgStore(mock)
	ok, err := store.Exists(context.Background(), "emp-1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_All(t *testing.T) {
	now := time.Now()
	mock := newPgMock(t)

	rows := pgxmock.NewRows([]string{
		"id", "display_name", "department", "embedding", "external_id", "enrolled_at", "updated_at",
	}).
		AddRow("emp-1", "Person emp-1", "engineering", pgvector.NewVector([]float32{1, 0}), (*string)(nil), now, now).
		AddRow("emp-2", "Person emp-2", "finance", pgvector.NewVector([]float32{0, 1}), (*string)(nil), now, now)
	mock.ExpectQuery(`FROM identities`).WillReturnRows(rows)

	store := NewPgStore(mock)
	all, err := store.All(context.Background())

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "finance", all["emp-2"].Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}
