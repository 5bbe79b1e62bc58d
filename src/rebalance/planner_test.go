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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
)

func mustSnapshot(t *testing.T, nodes []client.NodeRecord, shards []client.ShardRecord) *Snapshot {
	s, err := NewSnapshot(nodes, shards)
	require.NoError(t, err)
	return s
}

func TestPlanOneMoveSwap(t *testing.T) {
	s := mustSnapshot(t,
		testNodes("a", "b", "c"),
		[]client.ShardRecord{
			testShard("i1", 0, "a", 25),
			testShard("i2", 0, "a", 25),
			testShard("i3", 0, "a", 25),
			testShard("i4", 0, "a", 25),
			testShard("k1", 0, "b", 50),
			testShard("j1", 0, "c", 10),
		},
	)
	used := NewUsedShards()

	moves, err := PlanOneMove(s, used, PlanOptions{}, nil)
	require.NoError(t, err)
	require.Len(t, moves, 2)

	// The move relieving the heaviest node comes first.
	assert.Equal(t, "a", moves[0].FromNode)
	assert.Equal(t, "c", moves[0].ToNode)
	assert.Equal(t, int64(25), s.Node("c").Shards[len(s.Node("c").Shards)-1].Weight)
	assert.Equal(t, "c", moves[1].FromNode)
	assert.Equal(t, "a", moves[1].ToNode)
	assert.Equal(t, "j1", moves[1].Index)

	// Both proposed shards are now marked used.
	assert.True(t, used.Contains(moves[0].Index+"-0"))
	assert.True(t, used.Contains("j1-0"))

	// The hypothetical result is applied in memory.
	assert.Equal(t, int64(85), s.Node("a").Weight)
	assert.Equal(t, int64(25), s.Node("c").Weight)
	assert.Equal(t, "a", s.MaxNode().Name)
	assert.True(t, s.hostsIndex("c", moves[0].Index))
	assert.False(t, s.hostsIndex("c", "j1"))
}

func TestPlanOneMoveColocationConstraint(t *testing.T) {
	// The heaviest shard on the heavy node belongs to an index that
	// already has a copy on the light node, so it must be skipped.
	s := mustSnapshot(t,
		testNodes("a", "c"),
		[]client.ShardRecord{
			testShard("x", 0, "a", 60),
			testShard("y", 0, "a", 40),
			testShard("x", 1, "c", 10),
			testShard("z", 0, "c", 5),
		},
	)
	used := NewUsedShards()

	moves, err := PlanOneMove(s, used, PlanOptions{}, nil)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "y", moves[0].Index)
	assert.Equal(t, "z", moves[1].Index)
}

func TestPlanOneMoveNoEligibleLargeShard(t *testing.T) {
	// Every index on the heavy node already has a copy on the light one.
	s := mustSnapshot(t,
		testNodes("a", "c"),
		[]client.ShardRecord{
			testShard("x", 0, "a", 60),
			testShard("x", 1, "c", 10),
		},
	)

	_, err := PlanOneMove(s, NewUsedShards(), PlanOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNoSuitableMaxShard))
}

func TestPlanOneMoveUsedShardsExcluded(t *testing.T) {
	s := mustSnapshot(t,
		testNodes("a", "c"),
		[]client.ShardRecord{
			testShard("i1", 0, "a", 25),
			testShard("i2", 0, "a", 25),
			testShard("i3", 0, "a", 25),
			testShard("i4", 0, "a", 25),
			testShard("j1", 0, "c", 10),
			testShard("j2", 0, "c", 10),
		},
	)
	used := NewUsedShards()
	used.Add("i4-0")
	used.Add("j1-0")

	moves, err := PlanOneMove(s, used, PlanOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "i3", moves[0].Index)
	assert.Equal(t, "j2", moves[1].Index)
}

func TestPlanOneMoveOneWay(t *testing.T) {
	// One-way mode produces exactly one move and no return shard, even
	// when the move inverts the two nodes' weights.
	s := mustSnapshot(t,
		testNodes("a", "b", "c"),
		[]client.ShardRecord{
			testShard("x", 0, "a", 100),
			testShard("y", 0, "b", 50),
			testShard("z", 0, "c", 10),
		},
	)
	used := NewUsedShards()

	moves, err := PlanOneMove(s, used, PlanOptions{OneWay: true}, nil)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, Move{Index: "x", Shard: 0, FromNode: "a", ToNode: "c"}, moves[0])

	assert.True(t, used.Contains("x-0"))
	assert.False(t, used.Contains("z-0"))
	assert.Equal(t, int64(0), s.Node("a").Weight)
	assert.Equal(t, int64(110), s.Node("c").Weight)
}

func TestPlanOneMoveOvershootGuard(t *testing.T) {
	// Swapping the 100 for the 10 would just invert the imbalance, so
	// swap-mode planning must stop instead of oscillating.
	s := mustSnapshot(t,
		testNodes("a", "c"),
		[]client.ShardRecord{
			testShard("x", 0, "a", 100),
			testShard("z", 0, "c", 10),
		},
	)
	used := NewUsedShards()

	_, err := PlanOneMove(s, used, PlanOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNoFurtherGain))

	// Nothing was recorded or simulated.
	assert.Empty(t, used)
	assert.Equal(t, int64(100), s.Node("a").Weight)
	assert.Equal(t, int64(10), s.Node("c").Weight)
}

func TestPlanOneMoveForcedNodes(t *testing.T) {
	snapshot := func(t *testing.T) *Snapshot {
		return mustSnapshot(t,
			testNodes("a", "b", "c"),
			[]client.ShardRecord{
				testShard("i1", 0, "a", 20),
				testShard("i2", 0, "a", 20),
				testShard("j1", 0, "b", 25),
				testShard("j2", 0, "b", 20),
				testShard("j3", 0, "b", 15),
				testShard("k1", 0, "c", 20),
				testShard("k2", 0, "c", 20),
			},
		)
	}

	t.Run("forced pair is honoured", func(t *testing.T) {
		s := snapshot(t)
		moves, err := PlanOneMove(s, NewUsedShards(), PlanOptions{FromNode: "b", ToNode: "c"}, nil)
		require.NoError(t, err)
		require.Len(t, moves, 2)
		assert.Equal(t, "b", moves[0].FromNode)
		assert.Equal(t, "c", moves[0].ToNode)
		assert.Equal(t, "c", moves[1].FromNode)
		assert.Equal(t, "b", moves[1].ToNode)
	})

	t.Run("equal forced nodes rejected", func(t *testing.T) {
		_, err := PlanOneMove(snapshot(t), NewUsedShards(), PlanOptions{FromNode: "b", ToNode: "b"}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errSameForcedNode))
	})

	t.Run("unknown forced node rejected", func(t *testing.T) {
		_, err := PlanOneMove(snapshot(t), NewUsedShards(), PlanOptions{FromNode: "missing"}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errUnknownForcedNode))
	})
}
