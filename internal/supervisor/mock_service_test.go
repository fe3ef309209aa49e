// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockService is a suture.Service test double. It runs until ctx is
// canceled, optionally failing (returning a non-nil error so suture
// restarts it) the first failCount times it is started.
type MockService struct {
	name       string
	startCount int32
	failCount  int32
}

// NewMockService returns a MockService that never fails.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// SetFailCount configures the service to return an error on its first n
// invocations of Serve, then run normally thereafter.
func (m *MockService) SetFailCount(n int32) {
	atomic.StoreInt32(&m.failCount, n)
}

// StartCount reports how many times Serve has been entered.
func (m *MockService) StartCount() int32 {
	return atomic.LoadInt32(&m.startCount)
}

// Serve implements suture.Service.
func (m *MockService) Serve(ctx context.Context) error {
	n := atomic.AddInt32(&m.startCount, 1)
	if n <= atomic.LoadInt32(&m.failCount) {
		return errors.New("mock service induced failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

// String satisfies suture's optional Stringer interface for readable logs.
func (m *MockService) String() string { return m.name }
