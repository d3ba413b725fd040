package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daystart/internal/compose"
	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/logging"
	"daystart/internal/queue"
	"daystart/internal/services"
	"daystart/internal/sources"
	"daystart/internal/speech"
)

// Synthesizer is the slice of the speech layer the worker needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, publicID, text, voice string) (speech.Artifact, error)
}

// Worker processes claimed briefing jobs end to end.
type Worker struct {
	store      *queue.Store
	content    *content.Manager
	composer   *compose.Composer
	synth      Synthesizer
	logger     *slog.Logger
	owner      string
	jobTimeout time.Duration
	batchSize  int
}

// New builds a worker with a unique lease owner identity.
func New(store *queue.Store, manager *content.Manager, composer *compose.Composer, synth Synthesizer, cfg *config.Config, logger *slog.Logger) *Worker {
	return &Worker{
		store:      store,
		content:    manager,
		composer:   composer,
		synth:      synth,
		logger:     logging.NewComponentLogger(logger, "worker"),
		owner:      "worker-" + uuid.NewString(),
		jobTimeout: time.Duration(cfg.Jobs.JobTimeoutSeconds) * time.Second,
		batchSize:  cfg.Jobs.BatchSize,
	}
}

// Owner returns the lease owner identity used for claims.
func (w *Worker) Owner() string { return w.owner }

// ProcessBatch reclaims stale leases, claims up to max due jobs (the
// configured batch size when max <= 0), and processes each under its own
// timeout. Per-job failures are recorded on the job, not returned.
func (w *Worker) ProcessBatch(ctx context.Context, max int) (queue.BatchSummary, error) {
	if max <= 0 {
		max = w.batchSize
	}
	summary := queue.BatchSummary{}

	reclaimed, err := w.store.ReclaimStale(ctx)
	if err != nil {
		return summary, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	summary.Reclaimed = int(reclaimed)

	jobs, err := w.store.Claim(ctx, w.owner, max)
	if err != nil {
		return summary, fmt.Errorf("claim jobs: %w", err)
	}
	summary.Claimed = len(jobs)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		w.processJob(ctx, job, &summary)
	}
	return summary, nil
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job, summary *queue.BatchSummary) {
	jobCtx := services.WithJobID(ctx, job.ID)
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.jobTimeout)
		defer cancel()
	}
	logger := logging.WithContext(jobCtx, w.logger)

	artifact, err := w.generate(jobCtx, job, logger)
	if err != nil {
		w.recordFailure(ctx, job, err, summary, logger)
		return
	}

	if err := w.store.Complete(ctx, w.owner, job.ID, artifact.Path, artifact.DurationSeconds); err != nil {
		// A lost lease means another worker owns the job now; leave it be.
		logger.Warn("completion not recorded", logging.Error(err))
		return
	}
	summary.Completed++
	logger.Info("briefing completed",
		logging.String("artifact", artifact.Path),
		logging.Float64("duration_seconds", artifact.DurationSeconds),
		logging.String(logging.FieldProvider, artifact.Provider))
}

func (w *Worker) generate(ctx context.Context, job *queue.Job, logger *slog.Logger) (speech.Artifact, error) {
	resolved := w.resolve(ctx, job, logger)

	script, err := w.composer.Compose(services.WithStage(ctx, "compose"), job, resolved)
	if err != nil {
		return speech.Artifact{}, fmt.Errorf("compose script: %w", err)
	}

	artifact, err := w.synth.Synthesize(services.WithStage(ctx, "synthesize"), job.PublicID, script.Text, job.Voice)
	if err != nil {
		return speech.Artifact{}, fmt.Errorf("synthesize narration: %w", err)
	}
	return artifact, nil
}

// resolve gathers the content for every enabled section. A source failure
// drops that section rather than the whole briefing.
func (w *Worker) resolve(ctx context.Context, job *queue.Job, logger *slog.Logger) compose.Resolved {
	ctx = services.WithStage(ctx, "resolve")
	resolved := compose.Resolved{}

	if job.IncludeCalendar {
		resolved.Calendar = job.CalendarEvents
	}
	if job.IncludeWeather && job.Location != nil {
		scope := sources.WeatherScope(job.Location.Latitude, job.Location.Longitude, job.Location.City)
		if result, err := w.content.Get(ctx, content.TypeWeather, scope); err != nil {
			w.logSectionDrop(logger, content.TypeWeather, err)
		} else {
			resolved.Weather = result.Payload.Weather
		}
	}
	if job.IncludeNews {
		if result, err := w.content.Get(ctx, content.TypeNews, ""); err != nil {
			w.logSectionDrop(logger, content.TypeNews, err)
		} else {
			resolved.News = result.Payload.Headlines
		}
	}
	if job.IncludeSports {
		if result, err := w.content.Get(ctx, content.TypeSports, ""); err != nil {
			w.logSectionDrop(logger, content.TypeSports, err)
		} else {
			resolved.Sports = result.Payload.Headlines
		}
	}
	if job.IncludeStocks && len(job.StockSymbols) > 0 {
		scope := sources.StocksScope(job.StockSymbols)
		if result, err := w.content.Get(ctx, content.TypeStocks, scope); err != nil {
			w.logSectionDrop(logger, content.TypeStocks, err)
		} else {
			resolved.Stocks = result.Payload.Stocks
		}
	}
	if job.IncludeQuotes {
		if result, err := w.content.Get(ctx, content.TypeQuotes, ""); err != nil {
			w.logSectionDrop(logger, content.TypeQuotes, err)
		} else {
			resolved.Quote = result.Payload.Quote
		}
	}
	return resolved
}

func (w *Worker) logSectionDrop(logger *slog.Logger, contentType string, err error) {
	logger.Warn("section dropped, content unavailable",
		logging.String(logging.FieldContentType, contentType),
		logging.Error(err))
}

func (w *Worker) recordFailure(ctx context.Context, job *queue.Job, cause error, summary *queue.BatchSummary, logger *slog.Logger) {
	permanent := services.IsPermanent(cause)
	if err := w.store.Fail(ctx, w.owner, job.ID, cause.Error(), permanent); err != nil {
		logger.Warn("failure not recorded", logging.Error(err))
		return
	}

	updated, err := w.store.GetByID(ctx, job.ID)
	if err == nil && updated != nil && updated.Status == queue.StatusQueued {
		summary.Requeued++
		logger.Warn("briefing requeued", logging.Error(cause), logging.Int("attempts", updated.Attempts))
		return
	}
	summary.Failed++
	logger.Error("briefing failed", logging.Error(cause), logging.Bool("permanent", permanent))
}
