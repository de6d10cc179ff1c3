// Package queue is a Redis list backed job queue for work deferred out of the
// request path.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRecordings holds recording finalize jobs.
	QueueRecordings = "worker:recordings"
	// QueueDLQ receives jobs that kept failing.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of attempts before a job is dead-lettered.
	MaxRetries = 3
	// RetryBackoff is the pause after a failed attempt.
	RetryBackoff = 10 * time.Second

	pollTimeout = 5 * time.Second
)

type JobType string

const JobTypeRecordingFinalize JobType = "recording_finalize"

// RecordingFinalizePayload describes a recording left behind by a closed viewing session.
type RecordingFinalizePayload struct {
	ReservationID int64  `json:"reservation_id"`
	SessionID     string `json:"session_id"`
	RecordingID   string `json:"recording_id"`
	RecordingURL  string `json:"recording_url"`
}

// Job is the envelope stored in Redis.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRecordingFinalizeJob wraps payload in a fresh job envelope.
func NewRecordingFinalizeJob(payload RecordingFinalizePayload) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeRecordingFinalize,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// RecordingFinalize decodes the job payload.
func (j *Job) RecordingFinalize() (RecordingFinalizePayload, error) {
	var payload RecordingFinalizePayload
	if j.Type != JobTypeRecordingFinalize {
		return payload, fmt.Errorf("unexpected job type: %s", j.Type)
	}
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}

type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRecordingFinalize schedules archiving of a finished recording.
func (q *Queue) EnqueueRecordingFinalize(ctx context.Context, payload RecordingFinalizePayload) error {
	job, err := NewRecordingFinalizeJob(payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueRecordings, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued recording finalize job",
		zap.String("job_id", job.ID),
		zap.Int64("reservation_id", payload.ReservationID),
		zap.String("recording_id", payload.RecordingID))
	return nil
}

// Dequeue waits for the next job. A nil job with nil error means nothing
// arrived before the poll timeout or the entry was unreadable.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, pollTimeout, QueueRecordings).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry puts job back with its attempt counter bumped, or on the DLQ once
// MaxRetries is reached.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueRecordings, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}
