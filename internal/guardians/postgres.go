package guardians

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PostgresStore is the persistent drop-in for MemoryStore.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, app Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guardian_applications
			(actor_id, wallet, note, status, created_at, decided_by, decided_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (actor_id) DO UPDATE SET
			wallet = EXCLUDED.wallet,
			note = EXCLUDED.note,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			decided_by = EXCLUDED.decided_by,
			decided_at = EXCLUDED.decided_at,
			reason = EXCLUDED.reason
	`, app.ActorID, app.Wallet, app.Note, string(app.Status), app.CreatedAt, nullString(app.DecidedBy), app.DecidedAt, nullString(app.Reason))
	if err != nil {
		return fmt.Errorf("upsert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT actor_id, wallet, note, status, created_at, decided_by, decided_at, reason
		FROM guardian_applications WHERE actor_id = $1
	`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	if err != nil {
		return Application{}, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) List(ctx context.Context, status Status) ([]Application, error) {
	query := `
		SELECT actor_id, wallet, note, status, created_at, decided_by, decided_at, reason
		FROM guardian_applications
	`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("list applications: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status, decidedBy, reason string, at time.Time) (Application, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE guardian_applications
		SET status = $3, decided_by = $4, decided_at = $5, reason = $6
		WHERE actor_id = $1 AND status = $2
		RETURNING actor_id, wallet, note, status, created_at, decided_by, decided_at, reason
	`, id, string(from), string(to), nullString(decidedBy), at, nullString(reason))
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	if err != nil {
		return Application{}, fmt.Errorf("transition application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var (
		app       Application
		status    string
		decidedBy sql.NullString
		decidedAt sql.NullTime
		reason    sql.NullString
	)
	if err := row.Scan(&app.ActorID, &app.Wallet, &app.Note, &status, &app.CreatedAt, &decidedBy, &decidedAt, &reason); err != nil {
		return Application{}, err
	}
	app.Status = Status(status)
	app.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		at := decidedAt.Time
		app.DecidedAt = &at
	}
	app.Reason = reason.String
	return app, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
