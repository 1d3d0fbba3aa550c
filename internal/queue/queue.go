// Package queue provides the durable job queue feeding the thumbnail workers.
//
// The production implementation stores jobs in a PostgreSQL table and relies
// on SKIP LOCKED for concurrent dequeueing, so the API and the workers share
// nothing beyond the database. Jobs that keep failing are parked in place with
// a dead-letter timestamp instead of being deleted, which keeps the failure
// reason inspectable.
package queue

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/spf13/cast"
)

// Error codes surfaced by queue implementations.
const (
	CodeJobNotFound = "JOB_NOT_FOUND"
	CodeJobDead     = "JOB_DEAD"
	CodeInvalidJob  = "INVALID_JOB"
)

// Job identifies one thumbnail generation request.
// The owner id scopes the file lookup on the consumer side, so a job can only
// ever act on a file that still belongs to the user who uploaded it.
type Job struct {
	FileID  int64
	OwnerID int64
}

// Payload converts the job to its stored JSONB form.
func (j Job) Payload() map[string]any {
	return map[string]any{
		"fileId": j.FileID,
		"userId": j.OwnerID,
	}
}

// JobFromPayload restores a Job from its stored JSONB form.
// JSON decoding yields float64 for numbers, so both fields are coerced.
func JobFromPayload(payload map[string]any) (Job, error) {
	fileID, err := cast.ToInt64E(payload["fileId"])
	if err != nil {
		return Job{}, invalidJobError(payload)
	}

	ownerID, err := cast.ToInt64E(payload["userId"])
	if err != nil {
		return Job{}, invalidJobError(payload)
	}

	if fileID <= 0 || ownerID <= 0 {
		return Job{}, invalidJobError(payload)
	}

	return Job{FileID: fileID, OwnerID: ownerID}, nil
}

func invalidJobError(payload map[string]any) error {
	return errx.New(
		"job payload is malformed",
		errx.WithCode(CodeInvalidJob),
		errx.WithDetails(errx.D{"payload": payload}),
	)
}

// Delivery is a dequeued job lease. The job stays invisible to other
// consumers until the visibility timeout passes or the lease is settled with
// Ack or Nack.
type Delivery struct {
	ID          int64
	Job         Job
	Attempts    int
	MaxAttempts int
}

// Queue is the durable thumbnail job queue.
type Queue interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue leases the next available job for the given visibility timeout.
	// It returns nil when the queue has no available jobs.
	Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Delivery, error)

	// Ack settles a lease successfully, removing the job from the queue.
	Ack(ctx context.Context, deliveryID int64) error

	// Nack settles a lease unsuccessfully. Retryable failures reschedule the
	// job per the retry strategy until max attempts is exhausted; fatal
	// failures move the job to the dead-letter state immediately.
	Nack(ctx context.Context, deliveryID int64, reason string, fatal bool) error
}
