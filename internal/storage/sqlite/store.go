// Package sqlite persists tracking runs and their streamlines in a
// SQLite database. The schema is managed by embedded migrations.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/fibertrack/internal/tracto"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding tracking runs.
type Store struct {
	db *sql.DB
}

// RunRecord is the persisted summary of one tracking run.
type RunRecord struct {
	RunID            string
	CreatedUnixNanos int64
	Config           tracto.TrackerConfig
	SeedCount        int
	StreamlineCount  int
	Tally            map[tracto.TerminationCause]int
}

// StreamlineRecord is one persisted streamline.
type StreamlineRecord struct {
	RunID      string
	SeedIndex  int
	ArcLength  float64
	Streamline tracto.Streamline
}

// Open opens (creating if necessary) the database at path and applies
// all pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Don't close m: it would close the shared DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SaveRun persists a run summary together with its streamlines in one
// transaction and returns the generated run ID.
func (s *Store) SaveRun(cfg tracto.TrackerConfig, seedCount int, res *tracto.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save-run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tracking_runs (
			run_id, created_unix_nanos,
			step_width, max_iterations, probability_threshold,
			min_length, max_length, window_depth,
			seed_count, streamline_count,
			out_of_bounds, degenerate_direction, low_confidence,
			out_of_mask, max_iterations_hit, aborted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(),
		cfg.StepWidth, cfg.MaxIterations, cfg.ProbabilityThreshold,
		cfg.MinLength, cfg.MaxLength, cfg.WindowDepth,
		seedCount, len(res.Streamlines),
		res.Tally[tracto.CauseOutOfBounds],
		res.Tally[tracto.CauseDegenerateDirection],
		res.Tally[tracto.CauseLowConfidence],
		res.Tally[tracto.CauseOutOfMask],
		res.Tally[tracto.CauseMaxIterations],
		res.Tally[tracto.CauseAborted],
	)
	if err != nil {
		return "", fmt.Errorf("insert tracking run: %w", err)
	}

	for i, sl := range res.Streamlines {
		_, err = tx.Exec(`
			INSERT INTO streamlines (run_id, seed_index, point_count, arc_length, points)
			VALUES (?, ?, ?, ?, ?)`,
			runID, res.SeedIndices[i], len(sl), sl.ArcLength(), encodePoints(sl),
		)
		if err != nil {
			return "", fmt.Errorf("insert streamline for seed %d: %w", res.SeedIndices[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save-run transaction: %w", err)
	}
	return runID, nil
}

// GetRun loads one run summary.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_unix_nanos,
		       step_width, max_iterations, probability_threshold,
		       min_length, max_length, window_depth,
		       seed_count, streamline_count,
		       out_of_bounds, degenerate_direction, low_confidence,
		       out_of_mask, max_iterations_hit, aborted
		FROM tracking_runs WHERE run_id = ?`, runID)

	var rec RunRecord
	var oob, degen, lowc, oom, maxit, aborted int
	err := row.Scan(
		&rec.RunID, &rec.CreatedUnixNanos,
		&rec.Config.StepWidth, &rec.Config.MaxIterations, &rec.Config.ProbabilityThreshold,
		&rec.Config.MinLength, &rec.Config.MaxLength, &rec.Config.WindowDepth,
		&rec.SeedCount, &rec.StreamlineCount,
		&oob, &degen, &lowc, &oom, &maxit, &aborted,
	)
	if err != nil {
		return nil, fmt.Errorf("get tracking run %s: %w", runID, err)
	}
	rec.Tally = map[tracto.TerminationCause]int{
		tracto.CauseOutOfBounds:         oob,
		tracto.CauseDegenerateDirection: degen,
		tracto.CauseLowConfidence:       lowc,
		tracto.CauseOutOfMask:           oom,
		tracto.CauseMaxIterations:       maxit,
		tracto.CauseAborted:             aborted,
	}
	return &rec, nil
}

// GetStreamlines loads a run's streamlines ordered by seed index.
func (s *Store) GetStreamlines(runID string) ([]StreamlineRecord, error) {
	rows, err := s.db.Query(`
		SELECT seed_index, arc_length, points
		FROM streamlines WHERE run_id = ? ORDER BY seed_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query streamlines for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StreamlineRecord
	for rows.Next() {
		rec := StreamlineRecord{RunID: runID}
		var blob []byte
		if err := rows.Scan(&rec.SeedIndex, &rec.ArcLength, &blob); err != nil {
			return nil, fmt.Errorf("scan streamline row: %w", err)
		}
		sl, err := decodePoints(blob)
		if err != nil {
			return nil, fmt.Errorf("decode streamline for seed %d: %w", rec.SeedIndex, err)
		}
		rec.Streamline = sl
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streamline rows: %w", err)
	}
	return out, nil
}

// encodePoints packs points as little-endian float64 x,y,z triplets.
func encodePoints(sl tracto.Streamline) []byte {
	buf := make([]byte, 0, len(sl)*24)
	for _, p := range sl {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.X))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Y))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Z))
	}
	return buf
}

func decodePoints(blob []byte) (tracto.Streamline, error) {
	if len(blob)%24 != 0 {
		return nil, fmt.Errorf("point blob length %d is not a multiple of 24", len(blob))
	}
	sl := make(tracto.Streamline, 0, len(blob)/24)
	for off := 0; off < len(blob); off += 24 {
		sl = append(sl, r3.Vec{
			X: math.Float64frombits(binary.LittleEndian.Uint64(blob[off:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(blob[off+8:])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(blob[off+16:])),
		})
	}
	return sl, nil
}
