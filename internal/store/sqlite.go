package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	logger  *slog.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		logger:  logging.Component(logger, "store"),
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.encoder.Close()
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Solvers and tasks ---

// SaveSolver upserts a solver name.
func (s *SQLiteStore) SaveSolver(ctx context.Context, name, solverType string) error {
	s.logger.Debug("sql", "op", "upsert", "table", "solvers", "name", name)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO solvers (name, type) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET type = excluded.type`,
		name, solverType)
	return err
}

// ListSolvers returns the stored solver references, in name order.
func (s *SQLiteStore) ListSolvers(ctx context.Context) ([]model.SolverRef, error) {
	s.logger.Debug("sql", "op", "list", "table", "solvers")

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM solvers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []model.SolverRef
	for rows.Next() {
		var ref model.SolverRef
		if err := rows.Scan(&ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// SolversWithPrefix returns the stored solvers whose name starts with
// prefix, in name order. Callers bind the refs through lookup handles.
func (s *SQLiteStore) SolversWithPrefix(ctx context.Context, prefix string) ([]model.SolverRef, error) {
	s.logger.Debug("sql", "op", "select_by_prefix", "table", "solvers", "prefix", prefix)

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM solvers WHERE name LIKE ? ESCAPE '\' ORDER BY name`,
		likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []model.SolverRef
	for rows.Next() {
		var ref model.SolverRef
		if err := rows.Scan(&ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// SaveTask upserts a task row keyed by its UUID.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "upsert", "table", "tasks", "uuid", task.UUID)

	taskType := "file"
	if task.Preprocessor != "" {
		taskType = "preprocessed"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (uuid, type) VALUES (?, ?)
		 ON CONFLICT(uuid) DO UPDATE SET type = excluded.type`,
		task.UUID.String(), taskType)
	return err
}

// NameTask records a name for a task within a collection.
func (s *SQLiteStore) NameTask(ctx context.Context, taskUUID uuid.UUID, name, collection string) error {
	s.logger.Debug("sql", "op", "insert", "table", "task_names", "task_uuid", taskUUID, "name", name)

	if collection == "" {
		collection = "default"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_names (uuid, task_uuid, name, collection) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), taskUUID.String(), name, collection)
	return err
}

// TasksWithPrefix selects tasks whose name in the collection starts with
// prefix, in name order.
func (s *SQLiteStore) TasksWithPrefix(ctx context.Context, prefix, collection string) ([]TaskRecord, error) {
	s.logger.Debug("sql", "op", "select_by_prefix", "table", "task_names", "prefix", prefix)

	if collection == "" {
		collection = "default"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.uuid, n.name, n.collection
		 FROM tasks t JOIN task_names n ON n.task_uuid = t.uuid
		 WHERE n.collection = ? AND n.name LIKE ? ESCAPE '\'
		 ORDER BY n.name`,
		collection, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var id string
		if err := rows.Scan(&id, &rec.Name, &rec.Collection); err != nil {
			return nil, err
		}
		if rec.UUID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("task uuid %q: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// likePrefix escapes LIKE metacharacters in prefix and appends the
// trailing wildcard.
func likePrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '%', '_', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, prefix[i])
	}
	return string(escaped) + "%"
}

// --- Run records ---

// SaveRun inserts a CPU-limited run record, compressing its captured
// output.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "cpu_limited_runs", "uuid", run.UUID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cpu_limited_runs (uuid, started, usage_elapsed, proc_elapsed, cutoff,
		 stdout, stderr, exit_status, exit_signal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.UUID.String(), run.Started.Format(time.RFC3339Nano),
		run.UsageElapsed.Seconds(), run.ProcElapsed.Seconds(), run.Cutoff.Seconds(),
		s.compress(run.Stdout), s.compress(run.Stderr),
		run.ExitStatus, run.ExitSignal)
	return err
}

// GetRun loads a run record by UUID, decompressing its output. Returns
// nil when no such run exists.
func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "cpu_limited_runs", "uuid", id)

	var (
		run            model.Run
		started        string
		usage, pr, cut float64
		stdout, stderr []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT started, usage_elapsed, proc_elapsed, cutoff, stdout, stderr, exit_status, exit_signal
		 FROM cpu_limited_runs WHERE uuid = ?`, id.String(),
	).Scan(&started, &usage, &pr, &cut, &stdout, &stderr, &run.ExitStatus, &run.ExitSignal)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.UUID = id
	run.Started, _ = time.Parse(time.RFC3339Nano, started)
	run.UsageElapsed = secondsToDuration(usage)
	run.ProcElapsed = secondsToDuration(pr)
	run.Cutoff = secondsToDuration(cut)
	if run.Stdout, err = s.decompress(stdout); err != nil {
		return nil, fmt.Errorf("decompress stdout: %w", err)
	}
	if run.Stderr, err = s.decompress(stderr); err != nil {
		return nil, fmt.Errorf("decompress stderr: %w", err)
	}

	return &run, nil
}

// --- Trials and attempts ---

// CreateTrial inserts a new trial, optionally parented, and returns its
// UUID.
func (s *SQLiteStore) CreateTrial(ctx context.Context, parent *uuid.UUID, label string) (uuid.UUID, error) {
	id := uuid.New()
	s.logger.Debug("sql", "op", "insert", "table", "trials", "uuid", id, "label", label)

	var parentID *string
	if parent != nil {
		v := parent.String()
		parentID = &v
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (uuid, parent_uuid, label) VALUES (?, ?, ?)`,
		id.String(), parentID, label)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// EnsureRecyclableTrial creates the well-known recyclable trial if it
// does not exist yet.
func (s *SQLiteStore) EnsureRecyclableTrial(ctx context.Context) error {
	s.logger.Debug("sql", "op", "ensure", "table", "trials", "uuid", RecyclableTrialUUID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (uuid, parent_uuid, label) VALUES (?, NULL, 'recyclable')
		 ON CONFLICT(uuid) DO NOTHING`,
		RecyclableTrialUUID.String())
	return err
}

// SaveAttempt persists an attempt under a trial: the attempt row, its
// run-attempt provenance, the run record if one was captured, and the
// trial membership. The attempt is recorded under its outermost solver
// reference, so lookup-wrapped attempts keep their symbolic name.
func (s *SQLiteStore) SaveAttempt(ctx context.Context, attempt model.Attempt, seed *int64, trial uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	ref := attempt.Solver()
	s.logger.Debug("sql", "op", "insert", "table", "attempts", "uuid", id, "solver", ref.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var answerText *string
	var certificate []byte
	if answer := attempt.Answer(); answer != nil {
		answerText = &answer.Text
		if len(answer.Certificate) > 0 {
			packed, err := json.Marshal(answer.Certificate)
			if err != nil {
				return uuid.Nil, fmt.Errorf("marshal certificate: %w", err)
			}
			certificate = s.compress(packed)
		}
	}

	var taskUUID *string
	if t := attempt.TaskUUID(); t != uuid.Nil {
		v := t.String()
		taskUUID = &v
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (uuid, budget, cost, task_uuid, answer_text, certificate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), attempt.Budget(), attempt.Cost(), taskUUID, answerText, certificate,
	); err != nil {
		return uuid.Nil, err
	}

	var runUUID *string
	if direct := model.Innermost(attempt); direct != nil && direct.RunRecord != nil {
		record := direct.RunRecord
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cpu_limited_runs (uuid, started, usage_elapsed, proc_elapsed, cutoff,
			 stdout, stderr, exit_status, exit_signal)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.UUID.String(), record.Started.Format(time.RFC3339Nano),
			record.UsageElapsed.Seconds(), record.ProcElapsed.Seconds(), record.Cutoff.Seconds(),
			s.compress(record.Stdout), s.compress(record.Stderr),
			record.ExitStatus, record.ExitSignal,
		); err != nil {
			return uuid.Nil, fmt.Errorf("insert run record: %w", err)
		}
		v := record.UUID.String()
		runUUID = &v
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_attempts (uuid, solver_name, seed, run_uuid) VALUES (?, ?, ?, ?)`,
		id.String(), ref.Name, seed, runUUID,
	); err != nil {
		return uuid.Nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attempts_trials (attempt_uuid, trial_uuid) VALUES (?, ?)`,
		id.String(), trial.String(),
	); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// AttemptsForTrial loads the attempts recorded under a trial.
func (s *SQLiteStore) AttemptsForTrial(ctx context.Context, trial uuid.UUID) ([]AttemptRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "attempts", "trial", trial)

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.uuid, r.solver_name, a.task_uuid, a.budget, a.cost, r.seed, a.answer_text, a.certificate, r.run_uuid
		 FROM attempts a
		 JOIN run_attempts r ON r.uuid = a.uuid
		 JOIN attempts_trials j ON j.attempt_uuid = a.uuid
		 WHERE j.trial_uuid = ?`,
		trial.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var (
			rec         AttemptRecord
			id          string
			taskUUID    *string
			answerText  *string
			certificate []byte
			runUUID     *string
		)
		if err := rows.Scan(&id, &rec.SolverName, &taskUUID, &rec.Budget, &rec.Cost,
			&rec.Seed, &answerText, &certificate, &runUUID); err != nil {
			return nil, err
		}

		if rec.UUID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("attempt uuid %q: %w", id, err)
		}
		if taskUUID != nil {
			if rec.TaskUUID, err = uuid.Parse(*taskUUID); err != nil {
				return nil, fmt.Errorf("task uuid %q: %w", *taskUUID, err)
			}
		}
		if runUUID != nil {
			if rec.RunUUID, err = uuid.Parse(*runUUID); err != nil {
				return nil, fmt.Errorf("run uuid %q: %w", *runUUID, err)
			}
		}
		if answerText != nil {
			rec.Answer = &model.Answer{Text: *answerText}
			if len(certificate) > 0 {
				packed, err := s.decompress(certificate)
				if err != nil {
					return nil, fmt.Errorf("decompress certificate: %w", err)
				}
				if err := json.Unmarshal(packed, &rec.Answer.Certificate); err != nil {
					return nil, fmt.Errorf("unmarshal certificate: %w", err)
				}
			}
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// TrainingData assembles a run dataset from a trial's attempts, keyed by
// the tasks' names in the given collection. Attempts on unnamed tasks
// are skipped.
func (s *SQLiteStore) TrainingData(ctx context.Context, trial uuid.UUID, collection string) (*rundata.Dataset, error) {
	s.logger.Debug("sql", "op", "training_data", "trial", trial, "collection", collection)

	if collection == "" {
		collection = "default"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.name, r.solver_name, r.seed, a.budget, a.cost, a.answer_text
		 FROM attempts a
		 JOIN run_attempts r ON r.uuid = a.uuid
		 JOIN attempts_trials j ON j.attempt_uuid = a.uuid
		 JOIN task_names n ON n.task_uuid = a.task_uuid
		 WHERE j.trial_uuid = ? AND n.collection = ?`,
		trial.String(), collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := rundata.New()
	for rows.Next() {
		var (
			task       string
			outcome    rundata.Outcome
			seed       *int64
			answerText *string
		)
		if err := rows.Scan(&task, &outcome.Solver, &seed, &outcome.Budget, &outcome.Cost, &answerText); err != nil {
			return nil, err
		}
		if seed != nil {
			outcome.Seed = *seed
		}
		if answerText != nil {
			outcome.Succeeded = true
			outcome.Answer = *answerText
		}
		data.Add(task, outcome)
	}
	return data, rows.Err()
}

// --- compression helpers ---

func (s *SQLiteStore) compress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return s.encoder.EncodeAll(data, nil)
}

func (s *SQLiteStore) decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	return s.decoder.DecodeAll(blob, nil)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
