/*
scheduler.go - Cron-driven recurring generation

PURPOSE:
  Invokes the generation engine once per calendar month, after the source
  month's data is considered final. The default spec fires on the first of
  the month and generates from the previous month into the current one.

SERIALIZATION:
  The engine has no cross-run concurrency control; a run overlapping with a
  manual trigger can race. The scheduler is the single scheduled invocation
  callers are expected to rely on; avoid manual re-triggers while a run is
  in flight.

SEE ALSO:
  - handlers.go: RunGeneration (the manual trigger)
  - rental/engine.go: the algorithm
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/rental-ledger/rental"
)

// GenerationScheduler runs recurring generation on a cron spec.
type GenerationScheduler struct {
	Engine *rental.Engine
	Log    logrus.FieldLogger
	Spec   string // cron spec; default "0 6 1 * *" (06:00 on the 1st, UTC)

	cron *cron.Cron
}

// NewGenerationScheduler creates a scheduler with the default monthly spec.
func NewGenerationScheduler(engine *rental.Engine, log logrus.FieldLogger) *GenerationScheduler {
	return &GenerationScheduler{
		Engine: engine,
		Log:    log,
		Spec:   "0 6 1 * *",
	}
}

// Start registers the cron job and begins scheduling.
func (gs *GenerationScheduler) Start() error {
	gs.cron = cron.New(cron.WithLocation(time.UTC))

	_, err := gs.cron.AddFunc(gs.Spec, gs.runOnce)
	if err != nil {
		return err
	}

	gs.cron.Start()
	gs.Log.WithField("spec", gs.Spec).Info("generation scheduler started")
	return nil
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (gs *GenerationScheduler) Stop() {
	if gs.cron == nil {
		return
	}
	ctx := gs.cron.Stop()
	<-ctx.Done()
	gs.Log.Info("generation scheduler stopped")
}

// runOnce generates from the previous month into the current one. A job
// firing on the 1st sees the just-ended month as "previous".
func (gs *GenerationScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	target := rental.PeriodOf(time.Now().UTC())
	source := rental.Period{Year: target.Year, Month: target.Month - 1}
	if target.Month == time.January {
		source = rental.Period{Year: target.Year - 1, Month: time.December}
	}

	log := gs.Log.WithFields(logrus.Fields{
		"source": source.Key(),
		"target": target.Key(),
	})
	log.Info("scheduled generation starting")

	result, err := gs.Engine.Generate(ctx, rental.GenerateOptions{
		SourceYear:  source.Year,
		SourceMonth: int(source.Month),
		TargetYear:  target.Year,
		TargetMonth: int(target.Month),
	})
	if err != nil {
		log.WithError(err).Error("scheduled generation failed")
		return
	}

	log.WithFields(logrus.Fields{
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("scheduled generation finished")
}
