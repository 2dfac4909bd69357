// Package generator fans one prompt out into a batch of image generations and
// collects whatever succeeds.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tattooz/internal/infra"
	"tattooz/internal/prompt"
	"tattooz/internal/retry"
)

// Strategy selects how slots are scheduled.
type Strategy string

const (
	// Sequential runs slots one after another with a fixed gap.
	Sequential Strategy = "sequential"
	// Parallel starts every slot concurrently with a staggered start.
	Parallel Strategy = "parallel"
)

// ParseStrategy maps a config value to a Strategy, defaulting to Sequential.
func ParseStrategy(raw string) Strategy {
	if Strategy(strings.ToLower(strings.TrimSpace(raw))) == Parallel {
		return Parallel
	}
	return Sequential
}

// Requester produces one image as a data URL.
type Requester interface {
	RequestImage(ctx context.Context, prompt string, attempts int, initialBackoff time.Duration) (string, error)
}

// Observer receives slot and batch outcomes.
type Observer interface {
	ObserveSlot(state string)
	ObserveBatch(strategy string, took time.Duration)
}

// Options tunes the orchestrator. Zero values take the defaults below.
type Options struct {
	Strategy           Strategy
	SequentialDelay    time.Duration
	SequentialAttempts int
	ParallelStagger    time.Duration
	ParallelAttempts   int
	MaxParallel        int
	InitialBackoff     time.Duration

	Sleep    retry.SleepFunc
	Now      func() time.Time
	Logger   *infra.Logger
	Observer Observer
}

const (
	defaultSequentialDelay    = 3 * time.Second
	defaultSequentialAttempts = 2
	defaultParallelStagger    = 2 * time.Second
	defaultParallelAttempts   = 3
	defaultMaxParallel        = 4
	defaultInitialBackoff     = 5 * time.Second
)

// Orchestrator runs batches against a Requester. Individual failures are
// recorded on their slot and never abort the batch.
type Orchestrator struct {
	requester Requester
	opts      Options
	logger    *infra.Logger
}

// New returns an Orchestrator with defaults applied to opts.
func New(requester Requester, opts Options) *Orchestrator {
	if opts.Strategy == "" {
		opts.Strategy = Sequential
	}
	if opts.SequentialDelay < 0 {
		opts.SequentialDelay = 0
	} else if opts.SequentialDelay == 0 {
		opts.SequentialDelay = defaultSequentialDelay
	}
	if opts.SequentialAttempts <= 0 {
		opts.SequentialAttempts = defaultSequentialAttempts
	}
	if opts.ParallelStagger < 0 {
		opts.ParallelStagger = 0
	} else if opts.ParallelStagger == 0 {
		opts.ParallelStagger = defaultParallelStagger
	}
	if opts.ParallelAttempts <= 0 {
		opts.ParallelAttempts = defaultParallelAttempts
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{requester: requester, opts: opts, logger: infra.LoggerOrDiscard(opts.Logger)}
}

// Strategy reports the configured scheduling strategy.
func (o *Orchestrator) Strategy() Strategy {
	return o.opts.Strategy
}

// GenerateBatch composes the prompt for size and generates count images.
// The returned batch always has count slots, each in a terminal state.
func (o *Orchestrator) GenerateBatch(ctx context.Context, userPrompt string, size prompt.Size, count int) Batch {
	if count < 0 {
		count = 0
	}
	composed := prompt.Compose(userPrompt, size)
	batch := newBatch(o.opts.Strategy, count, o.opts.Now())
	log := o.logger.With().
		Str("batch_id", batch.ID.String()).
		Str("strategy", string(o.opts.Strategy)).
		Str("size", string(size)).
		Int("count", count).
		Logger()
	log.Info().Msg("batch started")

	switch o.opts.Strategy {
	case Parallel:
		o.runParallel(ctx, composed, batch.Slots, &log)
	default:
		o.runSequential(ctx, composed, batch.Slots, &log)
	}

	batch.Duration = o.opts.Now().Sub(batch.StartedAt)
	if o.opts.Observer != nil {
		for _, s := range batch.Slots {
			o.opts.Observer.ObserveSlot(string(s.State))
		}
		o.opts.Observer.ObserveBatch(string(batch.Strategy), batch.Duration)
	}
	log.Info().
		Int("succeeded", batch.Succeeded()).
		Int("failed", batch.Failed()).
		Dur("took", batch.Duration).
		Msg("batch finished")
	return batch
}

func (o *Orchestrator) runSequential(ctx context.Context, composed string, slots []Slot, log *infra.Logger) {
	for i := range slots {
		if i > 0 {
			if err := o.opts.Sleep(ctx, o.opts.SequentialDelay); err != nil {
				fail(&slots[i], fmt.Errorf("batch aborted: %w", err), log)
				continue
			}
		}
		o.fill(ctx, composed, &slots[i], o.opts.SequentialAttempts, log)
	}
}

func (o *Orchestrator) runParallel(ctx context.Context, composed string, slots []Slot, log *infra.Logger) {
	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallel)
	// Starts are staggered from the batch start, so time spent queued behind
	// SetLimit counts toward a slot's offset.
	start := o.opts.Now()
	for i := range slots {
		slot := &slots[i]
		g.Go(func() error {
			offset := time.Duration(slot.Index) * o.opts.ParallelStagger
			if delay := start.Add(offset).Sub(o.opts.Now()); delay > 0 {
				if err := o.opts.Sleep(ctx, delay); err != nil {
					fail(slot, fmt.Errorf("batch aborted: %w", err), log)
					return nil
				}
			}
			o.fill(ctx, composed, slot, o.opts.ParallelAttempts, log)
			return nil
		})
	}
	_ = g.Wait()
}

// fill runs one generation and moves slot into its terminal state.
func (o *Orchestrator) fill(ctx context.Context, composed string, slot *Slot, attempts int, log *infra.Logger) {
	dataURL, err := o.requester.RequestImage(ctx, composed, attempts, o.opts.InitialBackoff)
	if err != nil {
		fail(slot, err, log)
		return
	}
	slot.State = StateSuccess
	slot.Data = dataURL
	log.Debug().Int("slot", slot.Index).Msg("slot generated")
}

func fail(slot *Slot, err error, log *infra.Logger) {
	slot.State = StateFailure
	slot.ErrorMessage = err.Error()
	log.Warn().Err(err).Int("slot", slot.Index).Msg("slot failed")
}
