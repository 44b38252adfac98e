// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import "context"

// Runner is satisfied by *eventbus.Bus and *websocket.Hub.
type Runner interface {
	Run(ctx context.Context) error
	Name() string
}

// RunnerService delegates Serve to Run.
type RunnerService struct {
	runner Runner
}

// NewRunnerService wraps r.
func NewRunnerService(r Runner) *RunnerService {
	return &RunnerService{runner: r}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer.
func (s *RunnerService) String() string { return s.runner.Name() }
