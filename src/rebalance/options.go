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
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultSleepMargin  = 10 * time.Second
)

// ConfirmFn asks the operator a yes/no question and reports the answer.
type ConfirmFn func(prompt string) bool

// SleepFn blocks for the given duration. Injectable so tests never sleep.
type SleepFn func(d time.Duration)

// ExecutorOptions configure a commit Executor.
type ExecutorOptions interface {
	// SetPollInterval sets the delay between relocation-count polls.
	SetPollInterval(value time.Duration) ExecutorOptions

	// PollInterval returns the delay between relocation-count polls.
	PollInterval() time.Duration

	// SetSleepMargin sets the extra delay added to the cluster's
	// statistics refresh interval between serial moves.
	SetSleepMargin(value time.Duration) ExecutorOptions

	// SleepMargin returns the extra delay between serial moves.
	SleepMargin() time.Duration

	// SetConfirmFn sets the operator confirmation hook.
	SetConfirmFn(value ConfirmFn) ExecutorOptions

	// ConfirmFn returns the operator confirmation hook.
	ConfirmFn() ConfirmFn

	// SetSleepFn sets the sleep function.
	SetSleepFn(value SleepFn) ExecutorOptions

	// SleepFn returns the sleep function.
	SleepFn() SleepFn

	// SetMetricsScope sets the metrics scope.
	SetMetricsScope(value tally.Scope) ExecutorOptions

	// MetricsScope returns the metrics scope.
	MetricsScope() tally.Scope

	// SetLogger sets the logger.
	SetLogger(value *zap.Logger) ExecutorOptions

	// Logger returns the logger.
	Logger() *zap.Logger
}

type executorOptions struct {
	pollInterval time.Duration
	sleepMargin  time.Duration
	confirmFn    ConfirmFn
	sleepFn      SleepFn
	scope        tally.Scope
	logger       *zap.Logger
}

// NewExecutorOptions returns ExecutorOptions with sane defaults: stdin
// confirmation, real sleeps and a noop metrics scope.
func NewExecutorOptions() ExecutorOptions {
	return executorOptions{
		pollInterval: defaultPollInterval,
		sleepMargin:  defaultSleepMargin,
		confirmFn:    stdinConfirm,
		sleepFn:      time.Sleep,
		scope:        tally.NoopScope,
		logger:       zap.NewNop(),
	}
}

func (o executorOptions) SetPollInterval(value time.Duration) ExecutorOptions {
	o.pollInterval = value
	return o
}

func (o executorOptions) PollInterval() time.Duration {
	return o.pollInterval
}

func (o executorOptions) SetSleepMargin(value time.Duration) ExecutorOptions {
	o.sleepMargin = value
	return o
}

func (o executorOptions) SleepMargin() time.Duration {
	return o.sleepMargin
}

func (o executorOptions) SetConfirmFn(value ConfirmFn) ExecutorOptions {
	o.confirmFn = value
	return o
}

func (o executorOptions) ConfirmFn() ConfirmFn {
	return o.confirmFn
}

func (o executorOptions) SetSleepFn(value SleepFn) ExecutorOptions {
	o.sleepFn = value
	return o
}

func (o executorOptions) SleepFn() SleepFn {
	return o.sleepFn
}

func (o executorOptions) SetMetricsScope(value tally.Scope) ExecutorOptions {
	o.scope = value
	return o
}

func (o executorOptions) MetricsScope() tally.Scope {
	return o.scope
}

func (o executorOptions) SetLogger(value *zap.Logger) ExecutorOptions {
	o.logger = value
	return o
}

func (o executorOptions) Logger() *zap.Logger {
	return o.logger
}

func stdinConfirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
