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

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
)

type fakeClient struct {
	nodes     []client.NodeRecord
	shards    []client.ShardRecord
	settings  map[string]string
	setCalls  [][2]string
	submitted [][]client.MoveCommand
}

func (f *fakeClient) FetchNodes(_ context.Context, _ map[string]string) ([]client.NodeRecord, error) {
	return f.nodes, nil
}

func (f *fakeClient) FetchShards(_ context.Context, _ map[string]string, _ string) ([]client.ShardRecord, error) {
	return f.shards, nil
}

func (f *fakeClient) Health(_ context.Context) (client.HealthStatus, error) {
	return client.HealthStatus{Status: "green"}, nil
}

func (f *fakeClient) GetSetting(_ context.Context, path, defaultValue string) (string, error) {
	if value, ok := f.settings[path]; ok {
		return value, nil
	}
	return defaultValue, nil
}

func (f *fakeClient) SetSetting(_ context.Context, path, value string) error {
	f.setCalls = append(f.setCalls, [2]string{path, value})
	return nil
}

func (f *fakeClient) SubmitMoves(_ context.Context, moves []client.MoveCommand) error {
	f.submitted = append(f.submitted, moves)
	return nil
}

func testFakeClient() *fakeClient {
	return &fakeClient{
		nodes: []client.NodeRecord{
			{ID: "1", Name: "node-a"},
			{ID: "2", Name: "node-b"},
		},
		shards: []client.ShardRecord{
			{Index: "i1", Shard: 0, Node: "node-a", SizeBytes: 25},
			{Index: "i2", Shard: 0, Node: "node-a", SizeBytes: 25},
			{Index: "i3", Shard: 0, Node: "node-a", SizeBytes: 25},
			{Index: "i4", Shard: 0, Node: "node-a", SizeBytes: 25},
			{Index: "j1", Shard: 0, Node: "node-b", SizeBytes: 10},
		},
		settings: map[string]string{"cluster.routing.rebalance.enable": "all"},
	}
}

func TestRunPlanOnly(t *testing.T) {
	f := testFakeClient()

	err := run(context.Background(), f, zap.NewNop(), runOptions{iterations: 1})
	require.NoError(t, err)

	// Plan-only: nothing submitted, settings untouched.
	assert.Empty(t, f.submitted)
	assert.Empty(t, f.setCalls)
}

func TestRunCommitGuardsRebalanceSetting(t *testing.T) {
	f := testFakeClient()

	err := run(context.Background(), f, zap.NewNop(), runOptions{iterations: 1, commit: true})
	require.NoError(t, err)

	// The swap was submitted as one batch.
	require.Len(t, f.submitted, 1)
	require.Len(t, f.submitted[0], 2)
	assert.Equal(t, "node-a", f.submitted[0][0].FromNode)

	// Rebalancing was disabled up front and restored afterwards.
	require.Len(t, f.setCalls, 2)
	assert.Equal(t, [2]string{"cluster.routing.rebalance.enable", "none"}, f.setCalls[0])
	assert.Equal(t, [2]string{"cluster.routing.rebalance.enable", "all"}, f.setCalls[1])
}

func TestRunPrintState(t *testing.T) {
	f := testFakeClient()

	err := run(context.Background(), f, zap.NewNop(), runOptions{iterations: 1, printState: true})
	require.NoError(t, err)
	assert.Empty(t, f.submitted)
}

func TestParseAttrs(t *testing.T) {
	attrs, err := parseAttrs([]string{"zone=hot", "box=large"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"zone": "hot", "box": "large"}, attrs)

	attrs, err = parseAttrs(nil)
	require.NoError(t, err)
	assert.Nil(t, attrs)

	_, err = parseAttrs([]string{"missing-separator"})
	require.Error(t, err)

	_, err = parseAttrs([]string{"=value"})
	require.Error(t, err)
}
