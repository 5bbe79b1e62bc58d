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

// Package client talks to the Elasticsearch REST API on behalf of the
// rebalancer. It only covers the handful of endpoints the rebalancer needs:
// node and shard inventories, cluster health, transient cluster settings and
// reroute commands.
package client

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidReroute is returned by SubmitMoves when the cluster rejects the
// reroute request as invalid (HTTP 400). This is the one rejection callers
// may recover from; it typically means the combined request would push a
// node over a disk watermark.
var ErrInvalidReroute = errors.New("reroute request rejected as invalid")

// A NodeRecord is a cluster node that passed the attribute filter.
type NodeRecord struct {
	ID         string
	Name       string
	Attributes map[string]string
}

// A ShardRecord is a settled (started, not relocating) shard of a filtered
// index, with its on-disk size in bytes.
type ShardRecord struct {
	Index     string
	Shard     int
	Node      string
	SizeBytes int64
}

// ID returns the unique identity of the shard within the cluster.
func (s ShardRecord) ID() string {
	return fmt.Sprintf("%s-%d", s.Index, s.Shard)
}

// HealthStatus is the subset of _cluster/health the rebalancer cares about.
type HealthStatus struct {
	Status           string
	RelocatingShards int
}

// A MoveCommand relocates one shard from one node to another.
type MoveCommand struct {
	Index    string `json:"index"`
	Shard    int    `json:"shard"`
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}

// Client is the contract the rebalancer has with the cluster.
type Client interface {
	// FetchNodes returns the nodes whose attributes contain every
	// key=value pair in attrs.
	FetchNodes(ctx context.Context, attrs map[string]string) ([]NodeRecord, error)

	// FetchShards returns the started shards of every index whose
	// allocation-require attributes contain attrs and whose name matches
	// indexPattern (a regular expression, empty matches everything).
	FetchShards(ctx context.Context, attrs map[string]string, indexPattern string) ([]ShardRecord, error)

	// Health returns the current cluster health.
	Health(ctx context.Context) (HealthStatus, error)

	// GetSetting reads a transient cluster setting, returning defaultValue
	// when the setting is unset.
	GetSetting(ctx context.Context, path, defaultValue string) (string, error)

	// SetSetting writes a transient cluster setting. An empty value unsets
	// the setting.
	SetSetting(ctx context.Context, path, value string) error

	// SubmitMoves submits the moves as a single reroute request. A
	// rejection of the request itself is reported as ErrInvalidReroute;
	// any other failure is returned as-is.
	SubmitMoves(ctx context.Context, moves []MoveCommand) error
}
