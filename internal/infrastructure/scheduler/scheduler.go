package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// specParser matches the parser cron uses with WithSeconds: six fields,
// seconds first.
var specParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func ValidateSpec(spec string) error {
	_, err := specParser.Parse(spec)
	return err
}

type Scheduler struct {
	cron *cron.Cron
	base context.Context
}

func New(base context.Context) *Scheduler {
	if base == nil {
		base = context.Background()
	}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		base: base,
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = job(s.base)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
