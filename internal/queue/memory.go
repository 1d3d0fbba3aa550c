package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-memory Queue used in tests. It mirrors the lease
// semantics of the PostgreSQL implementation, including retry backoff and
// dead-lettering, with an injectable clock.
type MemoryQueue struct {
	mu          sync.Mutex
	rows        []*jobRow
	nextID      int64
	maxAttempts int
	retry       RetryStrategy
	now         func() time.Time
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(cfg Config) *MemoryQueue {
	return &MemoryQueue{
		nextID:      1,
		maxAttempts: cfg.MaxAttempts,
		retry:       NewExponentialBackoffStrategy(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		now:         time.Now,
	}
}

// SetClock replaces the queue clock. Test helper.
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	row := &jobRow{
		ID:          q.nextID,
		Payload:     job.Payload(),
		VisibleAt:   q.now(),
		MaxAttempts: q.maxAttempts,
		CreatedAt:   q.now(),
	}
	q.nextID++
	q.rows = append(q.rows, row)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context, visibilityTimeout time.Duration) (*Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, row := range q.rows {
		if row.DLQAt != nil || row.VisibleAt.After(now) {
			continue
		}

		row.VisibleAt = now.Add(visibilityTimeout)
		row.Attempts++

		delivery := &Delivery{
			ID:          row.ID,
			Attempts:    row.Attempts,
			MaxAttempts: row.MaxAttempts,
		}
		if job, err := JobFromPayload(row.Payload); err == nil {
			delivery.Job = job
		}
		return delivery, nil
	}
	return nil, nil
}

func (q *MemoryQueue) Ack(_ context.Context, deliveryID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, row := range q.rows {
		if row.ID == deliveryID {
			q.rows = append(q.rows[:i], q.rows[i+1:]...)
			return nil
		}
	}
	return jobNotFoundError(deliveryID)
}

func (q *MemoryQueue) Nack(_ context.Context, deliveryID int64, reason string, fatal bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, row := range q.rows {
		if row.ID != deliveryID {
			continue
		}

		if row.DLQAt != nil {
			return jobDeadError(deliveryID)
		}

		if !fatal && q.retry.ShouldRetry(row.Attempts, row.MaxAttempts) {
			row.VisibleAt = q.now().Add(q.retry.NextRetryDelay(row.Attempts))
			return nil
		}

		now := q.now()
		row.DLQAt = &now
		row.DLQReason = &reason
		return nil
	}
	return jobNotFoundError(deliveryID)
}

// DeadLetters returns the dead-lettered rows. Test helper.
func (q *MemoryQueue) DeadLetters() []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dead []Delivery
	for _, row := range q.rows {
		if row.DLQAt == nil {
			continue
		}
		d := Delivery{ID: row.ID, Attempts: row.Attempts, MaxAttempts: row.MaxAttempts}
		if job, err := JobFromPayload(row.Payload); err == nil {
			d.Job = job
		}
		dead = append(dead, d)
	}
	return dead
}

// Len returns the number of stored rows, dead-lettered included. Test helper.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rows)
}
