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
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var errInvalidIterations = errors.New("iterations must be at least 1")

// DriverOptions configure a planning run.
type DriverOptions struct {
	// Iterations is the number of planning rounds. Defaults to 1 when
	// zero.
	Iterations int
	// FromNodes and ToNodes seed the forced source/destination candidate
	// pools. Each iteration consumes the head of each pool and rotates
	// it, so successive iterations cycle through the candidates instead
	// of hammering one pair.
	FromNodes []string
	ToNodes   []string
	// OneWay disables the return move on every iteration.
	OneWay bool
	Logger *zap.Logger
}

// A Driver runs the planner for a configured number of iterations against a
// single snapshot, accumulating the proposed moves.
type Driver struct {
	iterations int
	fromNodes  []string
	toNodes    []string
	oneWay     bool
	logger     *zap.Logger
}

// NewDriver returns a Driver for the given options.
func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.Iterations == 0 {
		opts.Iterations = 1
	}
	if opts.Iterations < 0 {
		return nil, errInvalidIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		iterations: opts.Iterations,
		fromNodes:  opts.FromNodes,
		toNodes:    opts.ToNodes,
		oneWay:     opts.OneWay,
		logger:     logger,
	}, nil
}

// Run plans moves for the configured number of iterations, mutating the
// snapshot as it goes. Any planning failure aborts the run; there is no
// partial success.
func (d *Driver) Run(s *Snapshot) ([]Move, error) {
	var (
		used      = NewUsedShards()
		fromNodes = append([]string(nil), d.fromNodes...)
		toNodes   = append([]string(nil), d.toNodes...)
		all       []Move
	)
	for i := 0; i < d.iterations; i++ {
		opts := PlanOptions{OneWay: d.oneWay}
		if len(fromNodes) > 0 {
			opts.FromNode = fromNodes[0]
			fromNodes = rotate(fromNodes)
		}
		if len(toNodes) > 0 {
			opts.ToNode = toNodes[0]
			toNodes = rotate(toNodes)
		}

		d.logSpread(s, i)
		moves, err := PlanOneMove(s, used, opts, d.logger)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		all = append(all, moves...)
	}
	return all, nil
}

func (d *Driver) logSpread(s *Snapshot, iteration int) {
	var (
		nodes = s.Nodes()
		sum   float64
	)
	for _, n := range nodes {
		sum += s.UsedPercent(n)
	}
	minPercent := s.UsedPercent(s.MinNode())
	maxPercent := s.UsedPercent(s.MaxNode())
	d.logger.Info("load spread",
		zap.Int("iteration", iteration),
		zap.Int("nodes", len(nodes)),
		zap.Float64("average", sum/float64(len(nodes))),
		zap.Float64("min", minPercent),
		zap.Float64("max", maxPercent),
		zap.Float64("spread", maxPercent-minPercent))
}

func rotate(names []string) []string {
	rotated := make([]string, 0, len(names))
	rotated = append(rotated, names[1:]...)
	return append(rotated, names[0])
}
