// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler polls the gateway for payments that are still pending.
type Reconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler owns the cron runner for background jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
}

func NewScheduler(log *logrus.Logger) *Scheduler {
	entry := log.WithField("component", "jobs")
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{entry}), cron.SkipIfStillRunning(cronLogger{entry}))),
		log:  entry,
	}
}

// AddReconcile schedules a reconcile pass over payments pending for longer
// than olderThan. Each pass is bounded by timeout.
func (s *Scheduler) AddReconcile(spec string, r Reconciler, olderThan, timeout time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		checked, err := r.ReconcilePending(ctx, olderThan)
		if err != nil {
			s.log.WithError(err).Error("reconcile pass failed")
			return
		}
		if checked > 0 {
			s.log.WithField("checked", checked).Info("reconciled pending payments")
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out[key] = kv[i+1]
		}
	}
	return out
}
