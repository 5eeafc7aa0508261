package batch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/chaos-io/bgmatte/util/logger"
)

// Runner 可被定时触发的任务，*Job 实现了它
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

var _ Runner = (*Job)(nil)

// Scheduler 按 cron 表达式执行 Runner，上一次还没跑完时跳过本次
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(ctx context.Context) *Scheduler {
	l := cronLogger{logger.Entry(ctx).WithField("component", "cron")}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add 注册任务，spec 如 "@every 5m"、"0 3 * * *"
func (s *Scheduler) Add(spec string, job Runner) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		sum, err := job.Run(s.ctx)
		if err != nil {
			logger.Entry(s.ctx).WithError(err).WithField("job_id", sum.RunID).Error("scheduled batch run failed")
		}
	})
	if err != nil {
		return 0, errors.Wrapf(err, "invalid schedule %q", spec)
	}
	return id, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并取消正在运行的任务，最多等到 ctx 结束
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	e *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.e.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.e.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
