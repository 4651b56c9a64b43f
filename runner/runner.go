// Package runner drives one pipeline run: locate the newest received email,
// fetch it, short-circuit on a duplicate hash, gate on provenance headers,
// extract attachments, publish them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atx-oem/sesdrop/config"
	"github.com/atx-oem/sesdrop/dedup"
	"github.com/atx-oem/sesdrop/email"
	"github.com/atx-oem/sesdrop/inbox"
	"github.com/atx-oem/sesdrop/model"
	"github.com/atx-oem/sesdrop/progress"
	"github.com/atx-oem/sesdrop/publish"
	"github.com/atx-oem/sesdrop/stats"
	"github.com/atx-oem/sesdrop/storage"
	"github.com/atx-oem/sesdrop/verify"
)

type Runner struct {
	cfg       config.Config
	store     storage.Client
	tracker   dedup.Tracker
	publisher *publish.Publisher
	collector *stats.Collector
	printer   *progress.Printer
	logger    *slog.Logger
}

func New(cfg config.Config, store storage.Client, logger *slog.Logger) (*Runner, error) {
	var tracker dedup.Tracker
	switch cfg.DedupMode {
	case config.DedupManifest:
		tracker = &dedup.ManifestTracker{Store: store, Bucket: cfg.Bucket, Prefix: cfg.WritePrefix}
	default:
		tracker = &dedup.ListingTracker{Store: store, Bucket: cfg.Bucket, Prefix: cfg.WritePrefix}
	}

	publisher, err := publish.New(store, publish.Options{
		Bucket:      cfg.Bucket,
		WritePrefix: cfg.WritePrefix,
		DryRun:      cfg.DryRun,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		store:     store,
		tracker:   tracker,
		publisher: publisher,
		collector: stats.NewCollector(),
		printer:   progress.New(cfg.LogLevel),
		logger:    logger,
	}, nil
}

// SetClock overrides the publisher's folder timestamp source.
func (r *Runner) SetClock(now func() time.Time) {
	r.publisher.WithClock(now)
}

// Summary returns the stats accumulated by the last Run.
func (r *Runner) Summary() stats.Summary {
	return r.collector.Snapshot()
}

func (r *Runner) emit(evt stats.Event) {
	r.collector.Record(evt)
	r.printer.Update(evt)
}

// Run executes the pipeline once. The outcome distinguishes a full publish
// from the duplicate short-circuit and the provenance rejection; err is
// non-nil only for genuine failures.
func (r *Runner) Run(ctx context.Context) (model.Outcome, error) {
	started := time.Now()

	outcome, err := r.run(ctx)
	if err != nil {
		r.emit(stats.Event{Type: stats.EventTypeError, Err: err})
		r.logger.Error("run failed", "duration", time.Since(started), "err", err)
		return outcome, err
	}

	attrs := append(r.collector.Snapshot().LogAttrs(), "outcome", outcome.String(), "duration", time.Since(started))
	r.logger.Info("run finished", attrs...)
	r.printer.Done(outcome.String())
	return outcome, nil
}

func (r *Runner) run(ctx context.Context) (model.Outcome, error) {
	latest, err := inbox.FindLatest(ctx, r.store, r.cfg.Bucket, r.cfg.ReadPrefix)
	if err != nil {
		return model.OutcomeProcessed, err
	}
	r.emit(stats.Event{Stage: stats.StageLocate, Type: stats.EventTypeLocated, Key: latest.Key})
	r.logger.Debug("located most recent object", "key", latest.Key, "lastModified", latest.LastModified)

	fetched, err := inbox.Fetch(ctx, r.store, r.cfg.Bucket, latest.Key)
	if err != nil {
		return model.OutcomeProcessed, err
	}
	r.emit(stats.Event{
		Stage:  stats.StageFetch,
		Type:   stats.EventTypeFetched,
		Key:    fetched.Key,
		Detail: fmt.Sprintf("%d bytes, sha256 %s", fetched.Size, fetched.Hash),
	})

	seen, matched, err := r.tracker.AlreadyProcessed(ctx, fetched.Hash)
	if err != nil {
		return model.OutcomeProcessed, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		r.emit(stats.Event{Stage: stats.StageDedup, Type: stats.EventTypeDuplicate, Key: matched})
		r.logger.Info("content hash already published", "shortHash", fetched.ShortHash(), "matched", matched)
		return model.OutcomeDuplicate, nil
	}
	r.logger.Debug("content hash not seen before", "shortHash", fetched.ShortHash())

	parsed, err := email.Parse(fetched.Content)
	if err != nil {
		return model.OutcomeProcessed, err
	}

	if err := verify.Check(r.cfg.Rules, &parsed.Header); err != nil {
		var ruleErr *verify.RuleError
		if errors.As(err, &ruleErr) {
			r.emit(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeRejected, Detail: ruleErr.Error()})
			r.logger.Warn("provenance gate failed",
				"header", ruleErr.Header, "actual", ruleErr.Actual, "expected", ruleErr.Want)
			return model.OutcomeRejected, nil
		}
		return model.OutcomeProcessed, err
	}

	staging, err := email.NewStaging(r.cfg.KeepStaging)
	if err != nil {
		return model.OutcomeProcessed, err
	}
	defer func() {
		if err := staging.Close(); err != nil {
			r.logger.Warn("staging cleanup failed", "dir", staging.Dir, "err", err)
		}
	}()

	names, err := parsed.ExtractAttachments(staging.Dir, r.logger)
	if err != nil {
		return model.OutcomeProcessed, err
	}
	r.emit(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeExtracted, Count: len(names), Detail: staging.Dir})
	r.logger.Debug("extracted attachments", "count", len(names), "dir", staging.Dir)

	result, err := r.publisher.Publish(ctx, staging.Dir, fetched.Hash)
	if err != nil {
		return model.OutcomeProcessed, err
	}
	if result.Promoted != "" {
		r.emit(stats.Event{Stage: stats.StagePublish, Type: stats.EventTypePromoted, Key: result.Promoted, Count: 1})
	}
	for _, key := range result.Uploaded {
		r.emit(stats.Event{Stage: stats.StagePublish, Type: stats.EventTypeUploaded, Key: key, Count: 1})
	}

	if !r.cfg.DryRun {
		if err := r.tracker.MarkProcessed(ctx, fetched.Hash, result.Folder); err != nil {
			return model.OutcomeProcessed, fmt.Errorf("mark processed: %w", err)
		}
	}

	return model.OutcomeProcessed, nil
}
