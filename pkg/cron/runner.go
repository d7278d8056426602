package cron

import (
	"context"
	"fmt"
	"time"

	applogger "CoinPull/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Runner schedules jobs on a base context. A job still running when its next
// tick fires is skipped, and a panicking job is logged instead of crashing.
type Runner struct {
	cron    *cron.Cron
	log     *applogger.Logger
	baseCtx context.Context
}

func New(baseCtx context.Context, log *applogger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if log == nil {
		log = applogger.Nop()
	}
	cl := cronLogger{log: log}
	return &Runner{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:     log,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec, which is a 5-field cron expression or a
// descriptor like "@every 5m".
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		start := time.Now()
		job(r.baseCtx)
		r.log.Debug("cron job done", applogger.String("job", name), applogger.Duration("elapsed_ms", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("cron %s: %w", name, err)
	}
	r.log.Info("cron job scheduled", applogger.String("job", name), applogger.String("spec", spec))
	return id, nil
}

func (r *Runner) Start() {
	r.log.Info("cron started", applogger.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("cron stopped")
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ log *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
