package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// GraceIfStillRunning lets a tick that arrives while the previous run of the
// same job is still going wait up to grace for it to finish. Ticks that
// cannot start within grace are skipped.
func GraceIfStillRunning(grace time.Duration, logger cron.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		slot := make(chan struct{}, 1)
		slot <- struct{}{}
		return cron.FuncJob(func() {
			select {
			case v := <-slot:
				defer func() { slot <- v }()
				j.Run()
				return
			default:
			}

			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case v := <-slot:
				defer func() { slot <- v }()
				j.Run()
			case <-timer.C:
				logger.Info("skip", "reason", "previous run still active", "grace", grace.String())
			}
		})
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// With returns a logger carrying extra key/value pairs.
func (c cronLogger) With(keysAndValues ...interface{}) cronLogger {
	return cronLogger{c.l.With(keysAndValues...)}
}
