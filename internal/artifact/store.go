package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmc-dx/rmrp/internal/ranking"
	apperrors "github.com/cmc-dx/rmrp/internal/shared/errors"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/shared/types"
)

// ErrNotFound is returned when no artifact exists under a key. A fresh
// deployment starts from default engine state, so callers treat this as
// a normal condition, not a failure.
var ErrNotFound = errors.New("artifact not found")

// Store persists versioned engine state. Load returns the most recently
// saved state under a key.
type Store interface {
	Load(ctx context.Context, key string) (ranking.State, error)
	Save(ctx context.Context, key string, state ranking.State) error
}

// --- Postgres backend ---

// PostgresStore keeps every saved state as its own row, latest wins on
// load. Old versions are retained for inspection and rollback.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates an artifact store on a connection pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load returns the most recent state saved under key
func (s *PostgresStore) Load(ctx context.Context, key string) (ranking.State, error) {
	query := `
		SELECT payload
		FROM wardops.engine_artifacts
		WHERE artifact_key = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&payload)
	if err == pgx.ErrNoRows {
		return ranking.State{}, ErrNotFound
	}
	if err != nil {
		return ranking.State{}, apperrors.Wrap(err, "failed to load engine artifact")
	}

	var state ranking.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return ranking.State{}, apperrors.Wrap(err, "failed to decode engine artifact")
	}
	return state, nil
}

// Save appends a new artifact version
func (s *PostgresStore) Save(ctx context.Context, key string, state ranking.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		metrics.RecordArtifactSave("postgres", "error")
		return apperrors.Wrap(err, "failed to encode engine artifact")
	}

	query := `
		INSERT INTO wardops.engine_artifacts (id, artifact_key, graph_hash, payload)
		VALUES ($1, $2, $3, $4)`

	_, err = s.pool.Exec(ctx, query, types.NewID(), key, state.GraphHash, payload)
	if err != nil {
		metrics.RecordArtifactSave("postgres", "error")
		return apperrors.Wrap(err, "failed to save engine artifact")
	}

	metrics.RecordArtifactSave("postgres", "ok")
	return nil
}

// --- Filesystem backend ---

// FilesystemStore writes one JSON file per key. Saves go to a temporary
// file first and are renamed into place, so a concurrently starting
// process never reads a half-written state.
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore creates a filesystem store rooted at dir
func NewFilesystemStore(dir string) *FilesystemStore {
	return &FilesystemStore{dir: dir}
}

// Load reads the state stored under key
func (s *FilesystemStore) Load(ctx context.Context, key string) (ranking.State, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return ranking.State{}, ErrNotFound
	}
	if err != nil {
		return ranking.State{}, apperrors.Wrap(err, "failed to read engine artifact")
	}

	var state ranking.State
	if err := json.Unmarshal(data, &state); err != nil {
		return ranking.State{}, apperrors.Wrap(err, "failed to decode engine artifact")
	}
	return state, nil
}

// Save atomically replaces the state stored under key
func (s *FilesystemStore) Save(ctx context.Context, key string, state ranking.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to create artifact directory")
	}

	data, err := json.Marshal(state)
	if err != nil {
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to encode engine artifact")
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to create temporary artifact file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to write engine artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to close engine artifact")
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		metrics.RecordArtifactSave("filesystem", "error")
		return apperrors.Wrap(err, "failed to replace engine artifact")
	}

	metrics.RecordArtifactSave("filesystem", "ok")
	return nil
}

func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
