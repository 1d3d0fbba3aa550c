package queue

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
)

const tableThumbnailJobs = "thumbnail_jobs"

// jobRow is the stored form of a queued job.
type jobRow struct {
	ID          int64          `bun:"id,pk"`
	Payload     map[string]any `bun:"payload,type:jsonb"`
	VisibleAt   time.Time      `bun:"visible_at"`
	Attempts    int            `bun:"attempts"`
	MaxAttempts int            `bun:"max_attempts"`
	CreatedAt   time.Time      `bun:"created_at"`
	UpdatedAt   time.Time      `bun:"updated_at"`
	DLQAt       *time.Time     `bun:"dlq_at"`
	DLQReason   *string        `bun:"dlq_reason"`
}

// Config configures the PostgreSQL queue.
type Config struct {
	// MaxAttempts is how many times a job may be leased before it is
	// dead-lettered on the next failure.
	MaxAttempts int `yaml:"max_attempts" default:"5"`

	// RetryBaseDelay seeds the exponential backoff between retries.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" default:"5s"`

	// RetryMaxDelay caps the backoff between retries.
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" default:"5m"`
}

// PostgresQueue is the production Queue backed by a single PostgreSQL table.
type PostgresQueue struct {
	db          *bun.DB
	maxAttempts int
	retry       RetryStrategy
}

// NewPostgresQueue creates a queue on top of the given Bun database.
func NewPostgresQueue(db *bun.DB, cfg Config) *PostgresQueue {
	return &PostgresQueue{
		db:          db,
		maxAttempts: cfg.MaxAttempts,
		retry:       NewExponentialBackoffStrategy(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
	}
}

// Migrate creates the jobs table if it does not exist.
func (q *PostgresQueue) Migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS thumbnail_jobs (
			id BIGSERIAL PRIMARY KEY,
			payload JSONB NOT NULL,
			visible_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			attempts INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 5,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			dlq_at TIMESTAMPTZ,
			dlq_reason TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_thumbnail_jobs_dequeue
		ON thumbnail_jobs (visible_at, id)
		WHERE dlq_at IS NULL;
	`)
	return errx.Wrap(err)
}

func (q *PostgresQueue) Enqueue(ctx context.Context, job Job) error {
	_, err := q.db.NewRaw(`
		INSERT INTO thumbnail_jobs (payload, max_attempts)
		VALUES (?, ?)
	`, job.Payload(), q.maxAttempts).Exec(ctx)
	return errx.Wrap(err)
}

func (q *PostgresQueue) Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Delivery, error) {
	var rows []jobRow

	_, err := q.db.NewRaw(`
		WITH selected AS (
			SELECT id
			FROM thumbnail_jobs
			WHERE visible_at <= NOW()
			  AND dlq_at IS NULL
			ORDER BY id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE thumbnail_jobs j
		SET
			visible_at = NOW() + INTERVAL '1 second' * ?,
			attempts = attempts + 1,
			updated_at = NOW()
		FROM selected s
		WHERE j.id = s.id
		RETURNING j.*
	`, int(visibilityTimeout.Seconds())).Exec(ctx, &rows)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]

	job, err := JobFromPayload(row.Payload)
	if err != nil {
		// Malformed jobs are still delivered so the consumer can settle them.
		return &Delivery{ID: row.ID, Attempts: row.Attempts, MaxAttempts: row.MaxAttempts}, nil
	}

	return &Delivery{
		ID:          row.ID,
		Job:         job,
		Attempts:    row.Attempts,
		MaxAttempts: row.MaxAttempts,
	}, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, deliveryID int64) error {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM thumbnail_jobs
		WHERE id = ?
	`, deliveryID)
	if err != nil {
		return errx.Wrap(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err)
	}
	if affected == 0 {
		return jobNotFoundError(deliveryID)
	}
	return nil
}

func (q *PostgresQueue) Nack(ctx context.Context, deliveryID int64, reason string, fatal bool) error {
	row := new(jobRow)

	err := q.db.NewRaw(`
		SELECT *
		FROM thumbnail_jobs
		WHERE id = ?
	`, deliveryID).Scan(ctx, row)
	if err != nil {
		return errx.Wrap(err, errx.WithCode(CodeJobNotFound))
	}

	if row.DLQAt != nil {
		return jobDeadError(deliveryID)
	}

	if !fatal && q.retry.ShouldRetry(row.Attempts, row.MaxAttempts) {
		delay := q.retry.NextRetryDelay(row.Attempts)

		_, err = q.db.ExecContext(ctx, `
			UPDATE thumbnail_jobs
			SET visible_at = ?, updated_at = NOW()
			WHERE id = ?
		`, time.Now().Add(delay), deliveryID)
		return errx.Wrap(err)
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE thumbnail_jobs
		SET dlq_at = NOW(), dlq_reason = ?, updated_at = NOW()
		WHERE id = ?
	`, reason, deliveryID)
	return errx.Wrap(err)
}

// Stats reports queue depth counters for the stats endpoint and monitoring.
type Stats struct {
	Available int64 `bun:"available"`
	InFlight  int64 `bun:"in_flight"`
	Dead      int64 `bun:"dead"`
}

// Stats returns the current queue depth counters.
func (q *PostgresQueue) Stats(ctx context.Context) (*Stats, error) {
	stats := new(Stats)

	err := q.db.NewRaw(`
		SELECT
			COUNT(*) FILTER (WHERE visible_at <= NOW() AND dlq_at IS NULL) AS available,
			COUNT(*) FILTER (WHERE visible_at > NOW() AND dlq_at IS NULL) AS in_flight,
			COUNT(*) FILTER (WHERE dlq_at IS NOT NULL) AS dead
		FROM thumbnail_jobs
	`).Scan(ctx, stats)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return stats, nil
}

func jobNotFoundError(deliveryID int64) error {
	return errx.New(
		"job not found",
		errx.WithCode(CodeJobNotFound),
		errx.WithDetails(errx.D{"delivery_id": deliveryID}),
	)
}

func jobDeadError(deliveryID int64) error {
	return errx.New(
		"job is already dead-lettered",
		errx.WithCode(CodeJobDead),
		errx.WithDetails(errx.D{"delivery_id": deliveryID}),
	)
}
