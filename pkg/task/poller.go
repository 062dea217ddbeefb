package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriscow/voicetask/pkg/batch"
)

// DefaultPollInterval is the spacing between remote status checks.
const DefaultPollInterval = 10 * time.Second

// pollOutcome is the explicit result of one status check. Exactly one
// of the three kinds applies: still in flight, a transient error to be
// retried next tick, or a terminal status that ends the loop.
type pollOutcome struct {
	kind   pollKind
	status Status // terminal outcomes only
	result string // terminal completed outcomes only
	err    error  // transient outcomes only
}

type pollKind int

const (
	pollInFlight pollKind = iota
	pollTransient
	pollTerminal
)

// Poller drives one submitted job to a terminal state: check status on
// a fixed interval, persist the terminal record, then interrupt the
// live session to announce the outcome.
type Poller struct {
	client   batch.API
	store    *Store
	notifier Notifier
	interval time.Duration
}

// NewPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPoller(client batch.API, store *Store, notifier Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = DirectSpeechNotifier{}
	}
	return &Poller{client: client, store: store, notifier: notifier, interval: interval}
}

// Run polls jobID until it reaches a terminal state or ctx is
// cancelled. Transient failures (network errors, malformed output) are
// logged and retried on the next tick; they never abandon the job.
func (p *Poller) Run(ctx context.Context, jobID, description string, session Speaker) {
	slog.Info("started polling batch job",
		slog.String("job_id", jobID),
		slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopped polling batch job",
				slog.String("job_id", jobID),
				slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
		}

		outcome := p.checkOnce(ctx, jobID)
		switch outcome.kind {
		case pollInFlight:
			continue
		case pollTransient:
			slog.Warn("error polling batch job, will retry",
				slog.String("job_id", jobID),
				slog.String("error", outcome.err.Error()))
			continue
		case pollTerminal:
			p.finish(ctx, jobID, description, outcome, session)
			return
		}
	}
}

// checkOnce queries remote status and classifies the answer. For a
// completed job it also downloads and extracts the result, so the
// terminal outcome carries everything needed to persist and announce.
func (p *Poller) checkOnce(ctx context.Context, jobID string) pollOutcome {
	resp, err := p.client.RetrieveBatch(ctx, jobID)
	if err != nil {
		return pollOutcome{kind: pollTransient, err: fmt.Errorf("retrieve batch: %w", err)}
	}

	status := Status(resp.Status)
	slog.Debug("batch job status",
		slog.String("job_id", jobID),
		slog.String("status", string(status)))

	if !status.Terminal() {
		return pollOutcome{kind: pollInFlight}
	}

	if status != StatusCompleted {
		return pollOutcome{kind: pollTerminal, status: status}
	}

	if resp.OutputFileID == nil || *resp.OutputFileID == "" {
		return pollOutcome{kind: pollTerminal, status: StatusCompleted, result: batch.ResultEmptyFallback}
	}

	content, err := p.client.GetFileContent(ctx, *resp.OutputFileID)
	if err != nil {
		return pollOutcome{kind: pollTransient, err: fmt.Errorf("fetch batch output: %w", err)}
	}
	defer content.Close()

	result, err := batch.ExtractResult(content)
	if err != nil {
		return pollOutcome{kind: pollTransient, err: fmt.Errorf("read batch output: %w", err)}
	}
	return pollOutcome{kind: pollTerminal, status: StatusCompleted, result: result}
}

// finish persists the terminal record, then notifies the user. The
// store write comes first so a read of the result tool immediately
// after the announcement sees the saved output.
func (p *Poller) finish(ctx context.Context, jobID, description string, outcome pollOutcome, session Speaker) {
	rec := Record{Description: description, Status: outcome.status}
	if outcome.status == StatusCompleted {
		rec.Result = &outcome.result
	}

	if err := p.store.Put(jobID, rec); err != nil {
		slog.Error("failed to persist terminal task record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
	}

	slog.Info("batch job reached terminal state",
		slog.String("job_id", jobID),
		slog.String("status", string(outcome.status)))

	if session == nil {
		return
	}

	var err error
	if outcome.status == StatusCompleted {
		err = p.notifier.NotifyReady(ctx, session, description)
	} else {
		err = p.notifier.NotifyFailed(ctx, session, description, outcome.status)
	}
	if err != nil {
		slog.Error("failed to notify user of task outcome",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
	}
}
