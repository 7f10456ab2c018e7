// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package health runs ops-level liveness checks for a tom-node process
// (transport reachability, peer count, backup store availability),
// separate from the protocol's own peer liveness tracking in
// discovery.HeartbeatTracker.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tom-mesh/tom-protocol/internal/logger"
)

// Status is the outcome of one health check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single named check.
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Check is a single health check function.
type Check func(ctx context.Context) error

// Checker manages and runs a registry of named Checks, caching results
// for cacheTTL to avoid re-running an expensive check on every poll.
type Checker struct {
	checks   map[string]Check
	timeout  time.Duration
	mu       sync.RWMutex
	logger   logger.Logger
	cacheTTL time.Duration
	cache    map[string]*cachedResult
}

type cachedResult struct {
	result    *CheckResult
	expiresAt time.Time
}

// NewChecker creates a Checker whose individual checks are bounded by
// timeout (default 5s).
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:   make(map[string]Check),
		timeout:  timeout,
		logger:   logger.GetDefaultLogger(),
		cacheTTL: 10 * time.Second,
		cache:    make(map[string]*cachedResult),
	}
}

// SetLogger overrides the checker's logger.
func (h *Checker) SetLogger(l logger.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = l
}

// SetCacheTTL overrides how long a check result is reused before re-running.
func (h *Checker) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// Register adds a named check.
func (h *Checker) Register(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.logger.Info("health check registered", logger.String("name", name))
}

// Unregister removes a named check and its cached result.
func (h *Checker) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
	delete(h.cache, name)
}

// Run executes a single named check, using a cached result if still fresh.
func (h *Checker) Run(ctx context.Context, name string) (*CheckResult, error) {
	h.mu.RLock()
	check, exists := h.checks[name]
	h.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("health: check not found: %s", name)
	}

	if cached := h.getCachedResult(name); cached != nil {
		return cached, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	duration := time.Since(start)

	result := &CheckResult{Name: name, Timestamp: time.Now(), Duration: duration}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		h.logger.Warn("health check failed", logger.String("name", name), logger.Error(err), logger.Duration("duration", duration))
	} else {
		result.Status = StatusHealthy
		h.logger.Debug("health check passed", logger.String("name", name), logger.Duration("duration", duration))
	}

	h.cacheResult(name, result)
	return result, nil
}

// RunAll executes every registered check concurrently.
func (h *Checker) RunAll(ctx context.Context) map[string]*CheckResult {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()

	results := make(map[string]*CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, name := range names {
		wg.Add(1)
		go func(checkName string) {
			defer wg.Done()
			result, err := h.Run(ctx, checkName)
			if err != nil {
				result = &CheckResult{Name: checkName, Status: StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
			}
			mu.Lock()
			results[checkName] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return results
}

// OverallStatus reduces every check result to a single Status: unhealthy
// if any check is unhealthy, else degraded if any is degraded, else
// healthy (including the no-checks-registered case).
func (h *Checker) OverallStatus(ctx context.Context) Status {
	results := h.RunAll(ctx)
	if len(results) == 0 {
		return StatusHealthy
	}

	hasUnhealthy, hasDegraded := false, false
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Checker) getCachedResult(name string) *CheckResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cached, exists := h.cache[name]
	if !exists || time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.result
}

func (h *Checker) cacheResult(name string, result *CheckResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache[name] = &cachedResult{result: result, expiresAt: time.Now().Add(h.cacheTTL)}
}

// ClearCache discards every cached result.
func (h *Checker) ClearCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[string]*cachedResult)
}

// SystemHealth is a point-in-time rollup of every registered check.
type SystemHealth struct {
	Status    Status                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*CheckResult `json:"checks"`
}

// Snapshot runs every check and returns the rolled-up result.
func (h *Checker) Snapshot(ctx context.Context) *SystemHealth {
	checks := h.RunAll(ctx)
	return &SystemHealth{Status: h.OverallStatus(ctx), Timestamp: time.Now(), Checks: checks}
}

// Common check constructors, wired by cmd/tom-node to the running node's
// collaborators.

// TransportCheck reports unhealthy when connectedPeers returns fewer than
// minPeers reachable connections — a tom-node with zero live connections
// cannot relay or gossip.
func TransportCheck(connectedPeers func() int, minPeers int) Check {
	return func(ctx context.Context) error {
		if connectedPeers == nil {
			return fmt.Errorf("health: transport connectedPeers not configured")
		}
		if n := connectedPeers(); n < minPeers {
			return fmt.Errorf("health: only %d peer(s) connected, want at least %d", n, minPeers)
		}
		return nil
	}
}

// BackupStoreCheck runs ping against the backup store (e.g. a liveness
// probe on an on-disk or in-memory store implementation).
func BackupStoreCheck(ping func(context.Context) error) Check {
	return func(ctx context.Context) error {
		if ping == nil {
			return fmt.Errorf("health: backup store ping not configured")
		}
		return ping(ctx)
	}
}

// KeyStoreCheck verifies the node's signing key is loadable.
func KeyStoreCheck(checker func() error) Check {
	return func(ctx context.Context) error {
		if checker == nil {
			return fmt.Errorf("health: keystore checker not configured")
		}
		done := make(chan error, 1)
		go func() { done <- checker() }()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		}
	}
}
