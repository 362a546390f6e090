package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/db"
	"github.com/sells-group/incore-data/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS buildings (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	guid        TEXT NOT NULL,
	fd_id       TEXT NOT NULL,
	occtype     TEXT NOT NULL,
	struct_typ  TEXT NOT NULL DEFAULT '',
	no_stories  INTEGER NOT NULL DEFAULT 0,
	year_built  INTEGER NOT NULL DEFAULT 0,
	dgn_lvl     TEXT NOT NULL DEFAULT '',
	exact_match BOOLEAN NOT NULL DEFAULT false,
	sheet       TEXT NOT NULL DEFAULT '',
	lon         DOUBLE PRECISION NOT NULL DEFAULT 0,
	lat         DOUBLE PRECISION NOT NULL DEFAULT 0,
	county_fips TEXT NOT NULL DEFAULT '',
	geom        BYTEA,
	ord         BIGSERIAL,
	PRIMARY KEY (run_id, guid)
);

CREATE TABLE IF NOT EXISTS block_groups (
	bgid       TEXT NOT NULL,
	survey     TEXT NOT NULL,
	bgidstr    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	total      INTEGER NOT NULL DEFAULT 0,
	white_nh   INTEGER NOT NULL DEFAULT 0,
	black_nh   INTEGER NOT NULL DEFAULT 0,
	hispanic   INTEGER NOT NULL DEFAULT 0,
	pwhitebg   DOUBLE PRECISION NOT NULL DEFAULT 0,
	pblackbg   DOUBLE PRECISION NOT NULL DEFAULT 0,
	phispbg    DOUBLE PRECISION NOT NULL DEFAULT 0,
	run_id     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (bgid, survey)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_buildings_county ON buildings(county_fips);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), paramsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, result)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, failedResult(cause))
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const runSelect = `SELECT id, kind, params, status, result, created_at, updated_at FROM runs`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, runSelect+` WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var paramsJSON, resultJSON []byte

	if err := row.Scan(&r.ID, &kind, &paramsJSON, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Kind, r.Status = model.RunKind(kind), model.RunStatus(status)
	if err := decodeRunJSON(&r, paramsJSON, resultJSON != nil, resultJSON); err != nil {
		return nil, eris.Wrap(err, "postgres")
	}
	return &r, nil
}

// SaveBuildings bulk loads buildings with COPY.
func (s *PostgresStore) SaveBuildings(ctx context.Context, runID string, buildings []model.Building) (int64, error) {
	rows, err := buildingRows(runID, buildings)
	if err != nil {
		return 0, err
	}
	n, err := db.CopyFrom(ctx, s.pool, "buildings", buildingColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save buildings for run %s", runID)
	}
	return n, nil
}

func (s *PostgresStore) ListBuildings(ctx context.Context, runID string) ([]model.Building, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+buildingSelectList+` FROM buildings WHERE run_id = $1 ORDER BY ord`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list buildings for run %s", runID)
	}
	defer rows.Close()

	var out []model.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list buildings iterate")
}

// SaveBlockGroups upserts block-group statistics keyed by (bgid, survey).
func (s *PostgresStore) SaveBlockGroups(ctx context.Context, runID string, groups []census.BlockGroup) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "block_groups",
		Columns:      blockGroupColumns,
		ConflictKeys: []string{"bgid", "survey"},
	}, blockGroupRows(runID, groups))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save block groups for run %s", runID)
	}
	return n, nil
}
