// Copyright (c) 2026 EDITD
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package rebalance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
)

const (
	healthStatusGreen = "green"

	// statsIntervalSetting is how often the cluster refreshes the disk
	// usage statistics its allocation deciders consult.
	statsIntervalSetting    = "cluster.info.update.interval"
	defaultStatsInterval    = 30 * time.Second
	defaultStatsIntervalStr = "30s"
)

var (
	errUserCancelled     = errors.New("user declined serial rerouting")
	errClusterNotHealthy = errors.New("cluster is not healthy")
)

// An Executor applies a planned move list to the live cluster. It first
// attempts the whole list as one reroute; if the cluster rejects the batch
// as invalid (usually a disk watermark trip) it falls back, with operator
// confirmation, to submitting moves one at a time with convergence and
// health checks in between.
type Executor struct {
	client  client.Client
	opts    ExecutorOptions
	logger  *zap.Logger
	metrics executorMetrics
}

type executorMetrics struct {
	movesSubmitted  tally.Counter
	serialFallbacks tally.Counter
	healthFailures  tally.Counter
}

func newExecutorMetrics(scope tally.Scope) executorMetrics {
	return executorMetrics{
		movesSubmitted:  scope.Counter("moves-submitted"),
		serialFallbacks: scope.Counter("serial-fallbacks"),
		healthFailures:  scope.Counter("health-failures"),
	}
}

// NewExecutor returns an Executor committing through the given client.
func NewExecutor(c client.Client, opts ExecutorOptions) *Executor {
	if opts == nil {
		opts = NewExecutorOptions()
	}
	return &Executor{
		client:  c,
		opts:    opts,
		logger:  opts.Logger(),
		metrics: newExecutorMetrics(opts.MetricsScope()),
	}
}

// Commit applies the move list to the cluster and blocks until all
// relocations have settled. Only a rejected-as-invalid batch falls back to
// the serial path; any other failure is fatal.
func (e *Executor) Commit(ctx context.Context, moves []Move) error {
	if len(moves) == 0 {
		e.logger.Info("no moves to commit")
		return nil
	}

	commands := moveCommands(moves)
	err := e.client.SubmitMoves(ctx, commands)
	if err == nil {
		e.metrics.movesSubmitted.Inc(int64(len(commands)))
		for _, move := range moves {
			e.logReroute(move)
		}
		e.logger.Info("waiting for relocations to complete")
		return e.waitForNoRelocations(ctx)
	}
	if !errors.Is(err, client.ErrInvalidReroute) {
		return err
	}

	e.metrics.serialFallbacks.Inc(1)
	e.logger.Warn("parallel reroute rejected by cluster", zap.Error(err))
	if !e.opts.ConfirmFn()("Parallel rerouting failed! Attempt shard by shard?") {
		return errUserCancelled
	}
	return e.commitSerial(ctx, moves)
}

func (e *Executor) commitSerial(ctx context.Context, moves []Move) error {
	// The cluster's allocation deciders run off disk statistics that
	// refresh on a fixed interval. Submitting the next move before the
	// stats catch up with the previous one risks a spurious rejection,
	// so every move is followed by a refresh-interval-plus-margin sleep.
	statsInterval := e.statsInterval(ctx)

	for i, move := range moves {
		e.logReroute(move)
		if err := e.client.SubmitMoves(ctx, moveCommands(moves[i:i+1])); err != nil {
			return fmt.Errorf("serial reroute %d/%d (%s): %w", i+1, len(moves), move, err)
		}
		e.metrics.movesSubmitted.Inc(1)

		e.logger.Info("waiting for relocation to complete",
			zap.Int("move", i+1),
			zap.Int("total", len(moves)))
		if err := e.waitForNoRelocations(ctx); err != nil {
			return err
		}
		if err := e.CheckHealth(ctx); err != nil {
			e.metrics.healthFailures.Inc(1)
			return fmt.Errorf("after reroute %d/%d: %w", i+1, len(moves), err)
		}

		if i < len(moves)-1 {
			delay := statsInterval + e.opts.SleepMargin()
			e.logger.Info("letting cluster statistics refresh",
				zap.Duration("delay", delay))
			e.opts.SleepFn()(delay)
		}
	}
	return nil
}

// CheckHealth verifies the cluster is green with no relocations in flight.
func (e *Executor) CheckHealth(ctx context.Context) error {
	health, err := e.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != healthStatusGreen {
		return fmt.Errorf("%w: status is %s", errClusterNotHealthy, health.Status)
	}
	if health.RelocatingShards > 0 {
		return fmt.Errorf("%w: already relocating %d shards", errClusterNotHealthy, health.RelocatingShards)
	}
	return nil
}

// waitForNoRelocations polls until the cluster reports zero in-flight
// relocations. Deliberately unbounded: relocation duration depends on data
// size, so only the context can cut the wait short.
func (e *Executor) waitForNoRelocations(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		health, err := e.client.Health(ctx)
		if err != nil {
			return err
		}
		if health.RelocatingShards == 0 {
			return nil
		}
		e.logger.Debug("relocations in flight",
			zap.Int("relocating", health.RelocatingShards))
		e.opts.SleepFn()(e.opts.PollInterval())
	}
}

func (e *Executor) statsInterval(ctx context.Context) time.Duration {
	value, err := e.client.GetSetting(ctx, statsIntervalSetting, defaultStatsIntervalStr)
	if err != nil {
		e.logger.Warn("could not read stats refresh interval, using default",
			zap.Error(err))
		return defaultStatsInterval
	}
	interval, err := time.ParseDuration(value)
	if err != nil {
		e.logger.Warn("unparseable stats refresh interval, using default",
			zap.String("value", value))
		return defaultStatsInterval
	}
	return interval
}

func (e *Executor) logReroute(move Move) {
	e.logger.Info("executing reroute",
		zap.String("shard", fmt.Sprintf("%s-%d", move.Index, move.Shard)),
		zap.String("from", move.FromNode),
		zap.String("to", move.ToNode))
}

func moveCommands(moves []Move) []client.MoveCommand {
	commands := make([]client.MoveCommand, 0, len(moves))
	for _, move := range moves {
		commands = append(commands, client.MoveCommand{
			Index:    move.Index,
			Shard:    move.Shard,
			FromNode: move.FromNode,
			ToNode:   move.ToNode,
		})
	}
	return commands
}
