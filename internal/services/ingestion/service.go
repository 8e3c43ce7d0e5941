// Package ingestion drives transcripts through chunking and embedding and owns
// the lecture status state machine.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/chunker"
	"github.com/ternarybob/lectern/internal/services/index"
)

// Status error reasons recorded for lectures that never finished
const (
	ReasonInterrupted = "ingestion interrupted"
	ReasonTimedOut    = "ingestion timed out"
)

// Service is the ingestion pipeline.
// The pending -> processing check-and-set and the final commit happen under a
// per-lecture gate; chunking and embedding run outside it.
type Service struct {
	lectures    interfaces.LectureStorage
	chats       interfaces.ChatHistoryStorage
	chunker     *chunker.Chunker
	index       *index.Index
	events      interfaces.EventService
	maxDuration time.Duration
	logger      arbor.ILogger

	gates      gates
	running    sync.Map // lectureID -> *run
	tombstones sync.Map // lectureID -> struct{}
	wg         sync.WaitGroup
}

// NewService creates the ingestion pipeline. maxDuration bounds a single run; zero disables it.
func NewService(
	lectures interfaces.LectureStorage,
	chats interfaces.ChatHistoryStorage,
	chunker *chunker.Chunker,
	index *index.Index,
	events interfaces.EventService,
	maxDuration time.Duration,
	logger arbor.ILogger,
) *Service {
	return &Service{
		lectures:    lectures,
		chats:       chats,
		chunker:     chunker,
		index:       index,
		events:      events,
		maxDuration: maxDuration,
		logger:      logger,
	}
}

// run is one accepted ingestion
type run struct {
	lectureID  string
	transcript models.Transcript
	ctx        context.Context
	cancel     context.CancelFunc
}

// Ingest chunks and embeds the transcript and returns once the lecture is
// completed or failed. Cancelling ctx aborts the run and fails the lecture.
func (s *Service) Ingest(ctx context.Context, lectureID string, transcript models.Transcript) error {
	r, err := s.begin(ctx, ctx, lectureID, transcript)
	if err != nil {
		return err
	}
	return s.execute(r)
}

// IngestAsync accepts the transcript and returns once the lecture is
// processing. The run continues in the background and outlives ctx.
func (s *Service) IngestAsync(ctx context.Context, lectureID string, transcript models.Transcript) error {
	r, err := s.begin(ctx, context.WithoutCancel(ctx), lectureID, transcript)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	common.SafeGo(s.logger, "ingest:"+lectureID, func() {
		defer s.wg.Done()
		_ = s.execute(r)
	})
	return nil
}

// begin performs the guarded transition to processing.
// runParent is the context the run itself derives from.
func (s *Service) begin(ctx, runParent context.Context, lectureID string, transcript models.Transcript) (*run, error) {
	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmptyInput, err)
	}

	unlock := s.gates.lock(lectureID)
	defer unlock()

	if s.isTombstoned(lectureID) {
		return nil, fmt.Errorf("%w: %s", models.ErrLectureNotFound, lectureID)
	}

	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}

	switch lecture.Status {
	case models.StatusProcessing:
		return nil, fmt.Errorf("%w: lecture %s", models.ErrConcurrentIngestion, lectureID)
	case models.StatusFailed:
		if err := lecture.Reset(); err != nil {
			return nil, err
		}
	}

	if err := lecture.MarkProcessing(transcript); err != nil {
		return nil, err
	}
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		return nil, fmt.Errorf("failed to save lecture status: %w", err)
	}
	s.publishStatus(ctx, lecture)

	runCtx, cancel := context.WithCancel(runParent)
	if s.maxDuration > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.maxDuration)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	r := &run{lectureID: lectureID, transcript: transcript, ctx: runCtx, cancel: cancel}
	s.running.Store(lectureID, r)

	s.logger.Info().
		Str("lecture_id", lectureID).
		Int("utterances", len(transcript)).
		Msg("Ingestion started")

	return r, nil
}

func (s *Service) execute(r *run) error {
	defer r.cancel()
	defer s.running.CompareAndDelete(r.lectureID, r)

	start := time.Now()
	drafts := s.chunker.Chunk(r.transcript)

	chunks, err := s.index.Embed(r.ctx, r.lectureID, drafts)
	if err != nil {
		return s.fail(r.lectureID, err)
	}

	if err := s.commit(r, chunks); err != nil {
		return err
	}

	s.logger.Info().
		Str("lecture_id", r.lectureID).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion completed")
	return nil
}

// commit makes the chunk set visible and completes the lecture in one gated step
func (s *Service) commit(r *run, chunks []*models.Chunk) error {
	unlock := s.gates.lock(r.lectureID)

	if s.isTombstoned(r.lectureID) {
		unlock()
		return fmt.Errorf("%w: %s deleted during ingestion", models.ErrLectureNotFound, r.lectureID)
	}
	if err := r.ctx.Err(); err != nil {
		unlock()
		return s.fail(r.lectureID, models.CapabilityError(r.ctx, "ingest", err))
	}

	// status writes must land even if the run was cancelled after this point
	ctx := context.WithoutCancel(r.ctx)

	lecture, err := s.lectures.GetLecture(ctx, r.lectureID)
	if err != nil {
		unlock()
		return err
	}
	if lecture.Status != models.StatusProcessing {
		unlock()
		return fmt.Errorf("%w: lecture %s left processing during ingestion (%s)", models.ErrInvalidTransition, r.lectureID, lecture.Status)
	}

	if err := s.index.Commit(ctx, r.lectureID, chunks); err != nil {
		unlock()
		return s.fail(r.lectureID, err)
	}

	if err := lecture.MarkCompleted(len(chunks)); err != nil {
		unlock()
		return s.fail(r.lectureID, err)
	}
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		unlock()
		return s.fail(r.lectureID, fmt.Errorf("failed to save lecture status: %w", err))
	}
	unlock()

	s.publishStatus(ctx, lecture)
	return nil
}

// fail discards any chunks for the lecture and records the failure reason.
// It returns cause so callers can pass it straight through.
func (s *Service) fail(lectureID string, cause error) error {
	unlock := s.gates.lock(lectureID)
	defer unlock()

	ctx := context.Background()

	if s.isTombstoned(lectureID) {
		return cause
	}

	if err := s.index.Remove(ctx, lectureID); err != nil {
		s.logger.Error().Err(err).Str("lecture_id", lectureID).Msg("Failed to discard chunks of failed ingestion")
	}

	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return errors.Join(cause, err)
	}
	if lecture.Status != models.StatusProcessing {
		return cause
	}
	if err := lecture.MarkFailed(cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		return errors.Join(cause, err)
	}

	s.logger.Warn().
		Err(cause).
		Str("lecture_id", lectureID).
		Msg("Ingestion failed")

	s.publishStatus(ctx, lecture)
	return cause
}

// Reset moves a completed or failed lecture back to pending and drops its chunks
func (s *Service) Reset(ctx context.Context, lectureID string) (models.StatusReport, error) {
	unlock := s.gates.lock(lectureID)
	defer unlock()

	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return models.StatusReport{}, err
	}
	if lecture.Status == models.StatusProcessing {
		return models.StatusReport{}, fmt.Errorf("%w: lecture %s", models.ErrConcurrentIngestion, lectureID)
	}
	if err := lecture.Reset(); err != nil {
		return models.StatusReport{}, err
	}
	if err := s.index.Remove(ctx, lectureID); err != nil {
		return models.StatusReport{}, err
	}
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		return models.StatusReport{}, fmt.Errorf("failed to save lecture status: %w", err)
	}

	s.publishStatus(ctx, lecture)
	return lecture.Report(), nil
}

// GetStatus returns the lecture's current status and failure reason
func (s *Service) GetStatus(ctx context.Context, lectureID string) (models.StatusReport, error) {
	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return models.StatusReport{}, err
	}
	return lecture.Report(), nil
}

// DeleteLecture cancels any in-flight run and removes the lecture with its
// chunks, vectors and chat history
func (s *Service) DeleteLecture(ctx context.Context, lectureID string) error {
	unlock := s.gates.lock(lectureID)

	if _, err := s.lectures.GetLecture(ctx, lectureID); err != nil {
		unlock()
		return err
	}

	s.tombstones.Store(lectureID, struct{}{})
	if r, ok := s.running.Load(lectureID); ok {
		r.(*run).cancel()
	}

	if err := s.index.Remove(ctx, lectureID); err != nil {
		unlock()
		return err
	}
	if err := s.chats.DeleteTurns(ctx, lectureID); err != nil {
		unlock()
		return fmt.Errorf("failed to delete chat history: %w", err)
	}
	if err := s.lectures.DeleteLecture(ctx, lectureID); err != nil {
		unlock()
		return fmt.Errorf("failed to delete lecture: %w", err)
	}
	unlock()

	s.logger.Info().Str("lecture_id", lectureID).Msg("Lecture deleted")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventLectureDeleted,
			Payload: lectureID,
		})
	}
	return nil
}

// Hold takes the lecture's gate for a write that must not outlive the
// lecture. It fails with ErrLectureNotFound for deleted lectures; on success
// the caller must call release.
func (s *Service) Hold(ctx context.Context, lectureID string) (func(), error) {
	unlock := s.gates.lock(lectureID)
	if s.isTombstoned(lectureID) {
		unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrLectureNotFound, lectureID)
	}
	if _, err := s.lectures.GetLecture(ctx, lectureID); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// RecoverInterrupted fails lectures a previous process left in processing
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	return s.failOrphans(ctx, ReasonInterrupted, 0)
}

// SweepStale fails processing lectures with no run in this process that
// started more than maxDuration ago
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	if s.maxDuration <= 0 {
		return 0, nil
	}
	return s.failOrphans(ctx, ReasonTimedOut, s.maxDuration)
}

func (s *Service) failOrphans(ctx context.Context, reason string, olderThan time.Duration) (int, error) {
	lectures, err := s.lectures.ListLecturesByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to list processing lectures: %w", err)
	}

	failed := 0
	for _, lecture := range lectures {
		if _, inFlight := s.running.Load(lecture.ID); inFlight {
			continue
		}
		if olderThan > 0 && lecture.StartedAt != nil && time.Since(*lecture.StartedAt) < olderThan {
			continue
		}
		if s.failOrphan(ctx, lecture.ID, reason) {
			failed++
		}
	}

	if failed > 0 {
		s.logger.Warn().
			Int("count", failed).
			Str("reason", reason).
			Msg("Failed orphaned ingestions")
	}
	return failed, nil
}

func (s *Service) failOrphan(ctx context.Context, lectureID, reason string) bool {
	unlock := s.gates.lock(lectureID)
	defer unlock()

	if _, inFlight := s.running.Load(lectureID); inFlight {
		return false
	}
	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil || lecture.Status != models.StatusProcessing {
		return false
	}
	if err := s.index.Remove(ctx, lectureID); err != nil {
		s.logger.Error().Err(err).Str("lecture_id", lectureID).Msg("Failed to discard chunks of orphaned ingestion")
		return false
	}
	if err := lecture.MarkFailed(reason); err != nil {
		return false
	}
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		s.logger.Error().Err(err).Str("lecture_id", lectureID).Msg("Failed to save orphaned lecture")
		return false
	}
	s.publishStatus(ctx, lecture)
	return true
}

// Wait blocks until background ingestions finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all in-flight ingestions and waits for them to record their outcome
func (s *Service) Shutdown() {
	s.running.Range(func(_, r any) bool {
		r.(*run).cancel()
		return true
	})
	s.wg.Wait()
}

func (s *Service) isTombstoned(lectureID string) bool {
	_, ok := s.tombstones.Load(lectureID)
	return ok
}

func (s *Service) publishStatus(ctx context.Context, lecture *models.Lecture) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventLectureStatusChanged,
		Payload: lecture.Report(),
	}); err != nil {
		s.logger.Warn().Err(err).Str("lecture_id", lecture.ID).Msg("Failed to publish status event")
	}
}

// Process re-ingests the transcript already stored on the lecture in the background
func (s *Service) Process(ctx context.Context, lectureID string) error {
	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return err
	}
	return s.IngestAsync(ctx, lectureID, lecture.Transcript)
}
