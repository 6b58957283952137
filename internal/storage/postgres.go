package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"geneticdfa/internal/model"
)

// PostgresStore keeps the same record layout as SQLiteStore on a pgx
// connection pool.
type PostgresStore struct {
	dsn string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return errors.New("postgres dsn is required")
	}
	if s.pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := createPostgresTables(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("create tables: %w", err)
	}

	s.pool = pool
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO dfa_runs (id, started_at, schema_version, codec_version, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			schema_version = EXCLUDED.schema_version,
			codec_version = EXCLUDED.codec_version,
			payload = EXCLUDED.payload
	`, run.ID, run.StartedAt, run.SchemaVersion, run.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.loadPayload(ctx, `SELECT payload FROM dfa_runs WHERE id = $1`, id)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT id, payload FROM dfa_runs ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) SaveChromosome(ctx context.Context, chromosome model.ChromosomeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := EncodeChromosome(chromosome)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO dfa_chromosomes (id, schema_version, codec_version, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			codec_version = EXCLUDED.codec_version,
			payload = EXCLUDED.payload
	`, chromosome.ID, chromosome.SchemaVersion, chromosome.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("save chromosome %s: %w", chromosome.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetChromosome(ctx context.Context, id string) (model.ChromosomeRecord, bool, error) {
	payload, ok, err := s.loadPayload(ctx, `SELECT payload FROM dfa_chromosomes WHERE id = $1`, id)
	if err != nil || !ok {
		return model.ChromosomeRecord{}, false, err
	}
	chromosome, err := DecodeChromosome(payload)
	if err != nil {
		return model.ChromosomeRecord{}, false, fmt.Errorf("decode chromosome %s: %w", id, err)
	}
	return chromosome, true, nil
}

func (s *PostgresStore) SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := EncodePopulationSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO dfa_populations (id, run_id, generation, schema_version, codec_version, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			generation = EXCLUDED.generation,
			schema_version = EXCLUDED.schema_version,
			codec_version = EXCLUDED.codec_version,
			payload = EXCLUDED.payload
	`, snapshot.ID, snapshot.RunID, snapshot.Generation, snapshot.SchemaVersion, snapshot.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("save population %s: %w", snapshot.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetPopulation(ctx context.Context, id string) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.loadPayload(ctx, `SELECT payload FROM dfa_populations WHERE id = $1`, id)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, err := DecodePopulationSnapshot(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode population %s: %w", id, err)
	}
	return snapshot, true, nil
}

func (s *PostgresStore) SaveFitnessHistory(ctx context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.saveRunArtifact(ctx, "fitness_history", runID, payload)
}

func (s *PostgresStore) GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.loadRunArtifact(ctx, "fitness_history", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *PostgresStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.saveRunArtifact(ctx, "generation_diagnostics", runID, payload)
}

func (s *PostgresStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.loadRunArtifact(ctx, "generation_diagnostics", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *PostgresStore) SaveTopChromosomes(ctx context.Context, runID string, top []model.TopChromosomeRecord) error {
	payload, err := EncodeTopChromosomes(top)
	if err != nil {
		return err
	}
	return s.saveRunArtifact(ctx, "top_chromosomes", runID, payload)
}

func (s *PostgresStore) GetTopChromosomes(ctx context.Context, runID string) ([]model.TopChromosomeRecord, bool, error) {
	payload, ok, err := s.loadRunArtifact(ctx, "top_chromosomes", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	top, err := DecodeTopChromosomes(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode top chromosomes %s: %w", runID, err)
	}
	return top, true, nil
}

func (s *PostgresStore) SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error {
	payload, err := EncodeLineage(lineage)
	if err != nil {
		return err
	}
	return s.saveRunArtifact(ctx, "lineage", runID, payload)
}

func (s *PostgresStore) GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error) {
	payload, ok, err := s.loadRunArtifact(ctx, "lineage", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	lineage, err := DecodeLineage(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage %s: %w", runID, err)
	}
	return lineage, true, nil
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, ErrNotInitialized
	}
	return s.pool, nil
}

// Per-run artifacts share one table keyed by (run_id, kind).
func (s *PostgresStore) saveRunArtifact(ctx context.Context, kind, runID string, payload []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO dfa_run_artifacts (run_id, kind, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, kind) DO UPDATE SET
			payload = EXCLUDED.payload
	`, runID, kind, payload)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", kind, runID, err)
	}
	return nil
}

func (s *PostgresStore) loadRunArtifact(ctx context.Context, kind, runID string) ([]byte, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = pool.QueryRow(ctx, `SELECT payload FROM dfa_run_artifacts WHERE run_id = $1 AND kind = $2`, runID, kind).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load %s %s: %w", kind, runID, err)
	}
	return payload, true, nil
}

func (s *PostgresStore) loadPayload(ctx context.Context, query, id string) ([]byte, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = pool.QueryRow(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func createPostgresTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dfa_runs (
			id VARCHAR(255) PRIMARY KEY,
			started_at VARCHAR(64) NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dfa_chromosomes (
			id VARCHAR(255) PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dfa_populations (
			id VARCHAR(255) PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			generation INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_dfa_populations_run_id ON dfa_populations (run_id);
		CREATE TABLE IF NOT EXISTS dfa_run_artifacts (
			run_id VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL,
			payload BYTEA NOT NULL,
			PRIMARY KEY (run_id, kind)
		);
	`)
	return err
}
