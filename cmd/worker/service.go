package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

// eventSource feeds published outbox events into the notification consumer.
type eventSource interface {
	Name() string
	Ping(context.Context) error
	Run(context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	DB     pinger
	Redis  pinger
	Source eventSource
}

// Service checks its dependencies once and then runs the event source until
// it returns or the context ends.
type Service struct {
	logg   *logger.Logger
	deps   []dependency
	source eventSource
}

type dependency struct {
	name string
	ping func(context.Context) error
}

func NewService(params ServiceParams) (*Service, error) {
	var errs error
	require := func(ok bool, what string) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", what))
		}
	}
	require(params.Logger != nil, "logger")
	require(params.DB != nil, "database client")
	require(params.Redis != nil, "redis client")
	require(params.Source != nil, "event source")
	if errs != nil {
		return nil, errs
	}

	return &Service{
		logg: params.Logger,
		deps: []dependency{
			{"database", params.DB.Ping},
			{"redis", params.Redis.Ping},
			{params.Source.Name(), params.Source.Ping},
		},
		source: params.Source,
	}, nil
}

func (s *Service) ready(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run returns ctx's error on shutdown, or the source's error if it stops
// first.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.source.Run(ctx) }()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
			}
			return err
		case <-heartbeat.C:
			s.logg.Debug(ctx, "worker heartbeat")
		}
	}
}
