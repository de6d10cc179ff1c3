package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/gateway"
	"github.com/Domenick1991/ownbang/internal/queue"
	"github.com/Domenick1991/ownbang/internal/repository"
	"github.com/Domenick1991/ownbang/internal/storage"
	"go.uber.org/zap"
)

type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

type RecordingArchive interface {
	UploadRecording(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

type RecordingCleaner interface {
	DeleteRecording(ctx context.Context, recordingID string) error
}

// RecordingProcessor archives recordings of finished viewings: it downloads the
// provider file, uploads it to the archive, marks the viewing record RECORDED
// and deletes the provider copy.
type RecordingProcessor struct {
	records  repository.ViewingRecordRepository
	archive  RecordingArchive
	provider RecordingCleaner
	queue    JobQueue
	http     *http.Client
	backoff  time.Duration
	logger   *zap.Logger
}

type ProcessorOption func(*RecordingProcessor)

func WithHTTPClient(c *http.Client) ProcessorOption {
	return func(p *RecordingProcessor) { p.http = c }
}

func WithBackoff(d time.Duration) ProcessorOption {
	return func(p *RecordingProcessor) { p.backoff = d }
}

func NewRecordingProcessor(
	records repository.ViewingRecordRepository,
	archive RecordingArchive,
	provider RecordingCleaner,
	q JobQueue,
	logger *zap.Logger,
	opts ...ProcessorOption,
) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RecordingProcessor{
		records:  records,
		archive:  archive,
		provider: provider,
		queue:    q,
		http:     http.DefaultClient,
		backoff:  queue.RetryBackoff,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process executes one recording finalize job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.RecordingFinalize()
	if err != nil {
		return err
	}
	log := p.logger.With(zap.Int64("reservation_id", payload.ReservationID), zap.String("recording_id", payload.RecordingID))

	current, err := p.records.GetByReservationID(ctx, payload.ReservationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load viewing record: %w", err)
	}
	if current != nil && current.Status == domain.ViewingRecordStatusRecorded && current.RecordingID == payload.RecordingID {
		log.Info("recording already archived")
		return nil
	}

	if payload.RecordingURL == "" {
		log.Warn("recording has no downloadable media")
		return p.records.Upsert(ctx, &domain.ViewingRecord{
			ReservationID: payload.ReservationID,
			RecordingID:   payload.RecordingID,
			Status:        domain.ViewingRecordStatusFailed,
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.RecordingURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.RecordingKey(payload.ReservationID, payload.RecordingID, extension(payload.RecordingURL))

	videoURL, err := p.archive.UploadRecording(ctx, key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	err = p.records.Upsert(ctx, &domain.ViewingRecord{
		ReservationID: payload.ReservationID,
		RecordingID:   payload.RecordingID,
		VideoURL:      videoURL,
		Status:        domain.ViewingRecordStatusRecorded,
	})
	if err != nil {
		return fmt.Errorf("update viewing record: %w", err)
	}

	if err := p.provider.DeleteRecording(ctx, payload.RecordingID); err != nil && !errors.Is(err, gateway.ErrRecordingNotFound) {
		log.Warn("delete provider recording", zap.Error(err))
	}

	log.Info("recording archived", zap.String("key", key))
	return nil
}

// Handle processes job and schedules a retry when it fails.
func (p *RecordingProcessor) Handle(ctx context.Context, job *queue.Job) error {
	err := p.Process(ctx, job)
	if err == nil {
		return nil
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
	}
	return err
}

// Run dequeues and handles jobs until ctx is done.
func (p *RecordingProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("recording worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Handle(ctx, job); err != nil {
			p.sleep(ctx)
		}
	}
}

func (p *RecordingProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}

func extension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
