// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adapterframework/eacore/internal/cache"
)

// LockServiceConfig configures a LockService.
type LockServiceConfig struct {
	Locker  cache.Locker
	Name    string // lease key, typically "{CACHE_PREFIX}-{ADAPTER_NAME}-writer-lock"
	TTL     time.Duration
	Retries int
	Logger  zerolog.Logger
}

// LockService is a suture.Service that holds the distributed writer lease
// (spec §9 Design Notes, "Reader-writer cache lock") for the data layer:
// it acquires the lease, logs the hold, and releases it on shutdown. The
// lease itself, not this service's presence, is what a deployment would
// gate background execution on when running more than one reader-writer
// process against a shared remote cache.
type LockService struct {
	cfg LockServiceConfig
}

// NewLockService builds a LockService from cfg.
func NewLockService(cfg LockServiceConfig) *LockService {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	return &LockService{cfg: cfg}
}

// Serve implements suture.Service: acquire the lease, hold it until ctx is
// canceled, then release. Returning nil on context cancellation tells
// suture this is a clean stop, not a crash to restart.
func (s *LockService) Serve(ctx context.Context) error {
	shutdown := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(shutdown)
	}()

	release, ok, err := s.cfg.Locker.Lock(ctx, s.cfg.Name, s.cfg.TTL, s.cfg.Retries, shutdown)
	if err != nil {
		return err
	}
	if !ok {
		s.cfg.Logger.Warn().Str("lock", s.cfg.Name).Msg("writer lease held by another process, standing down")
		<-ctx.Done()
		return nil
	}
	defer release()

	s.cfg.Logger.Info().Str("lock", s.cfg.Name).Msg("writer lease acquired")
	<-ctx.Done()
	return nil
}
