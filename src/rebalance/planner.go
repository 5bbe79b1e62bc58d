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

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
)

var (
	errSameForcedNode      = errors.New("forced source and destination nodes must differ")
	errNoSuitableMaxShard  = errors.New("no suitable large shard to move")
	errNoSuitableMinShard  = errors.New("no suitable small shard to move")
	errNoFurtherGain       = errors.New("no further optimization possible, swap would overshoot")
	errUnknownForcedNode   = errors.New("forced node is not part of the filtered cluster view")
	errNotEnoughCandidates = errors.New("need at least two distinct nodes to plan a move")
)

// A Move is a proposed relocation of one shard. Moves relieving the heaviest
// node are always emitted before moves returning weight to it: the cluster's
// own admission checks (disk watermarks) are more likely to accept the
// returning move once space has been freed.
type Move struct {
	Index    string
	Shard    int
	FromNode string
	ToNode   string
}

func (m Move) String() string {
	return fmt.Sprintf("%s-%d: %s -> %s", m.Index, m.Shard, m.FromNode, m.ToNode)
}

// UsedShards tracks shards already proposed during a run so no shard is
// moved twice across iterations.
type UsedShards map[string]struct{}

// NewUsedShards returns an empty used-shard set.
func NewUsedShards() UsedShards {
	return make(UsedShards)
}

// Add records a shard as proposed.
func (u UsedShards) Add(id string) {
	u[id] = struct{}{}
}

// Contains reports whether the shard was already proposed.
func (u UsedShards) Contains(id string) bool {
	_, ok := u[id]
	return ok
}

// PlanOptions control a single planning step.
type PlanOptions struct {
	// FromNode forces the source (heaviest) side of the swap.
	FromNode string
	// ToNode forces the destination (lightest) side of the swap.
	ToNode string
	// OneWay skips the return move: one shard moves off the heaviest
	// node and nothing comes back.
	OneWay bool
}

// PlanOneMove selects the next swap (or one-way move) between the heaviest
// and lightest nodes of the snapshot, honouring the co-location constraint
// and the used-shard set, and applies the hypothetical result to the
// snapshot in place. The returned moves are ordered with the
// heaviest-node-relieving move first.
func PlanOneMove(
	s *Snapshot,
	used UsedShards,
	opts PlanOptions,
	logger *zap.Logger,
) ([]Move, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FromNode != "" && opts.FromNode == opts.ToNode {
		return nil, fmt.Errorf("%w: %q", errSameForcedNode, opts.FromNode)
	}

	maxNode := s.MaxNode()
	if opts.FromNode != "" {
		if maxNode = s.Node(opts.FromNode); maxNode == nil {
			return nil, fmt.Errorf("%w: %q", errUnknownForcedNode, opts.FromNode)
		}
	}
	minNode := s.MinNode()
	if opts.ToNode != "" {
		if minNode = s.Node(opts.ToNode); minNode == nil {
			return nil, fmt.Errorf("%w: %q", errUnknownForcedNode, opts.ToNode)
		}
	}
	if maxNode == minNode {
		return nil, errNotEnoughCandidates
	}

	maxShard := pickLargestEligible(s, maxNode, minNode, used)
	if maxShard == nil {
		return nil, fmt.Errorf("%w to %s", errNoSuitableMaxShard, minNode.Name)
	}

	var minShard *Shard
	if !opts.OneWay {
		if minShard = pickSmallestEligible(s, minNode, maxNode, used); minShard == nil {
			return nil, fmt.Errorf("%w to %s", errNoSuitableMinShard, maxNode.Name)
		}

		// The run must stop once a swap would push the light node past
		// the heavy one, otherwise successive iterations oscillate.
		newMinWeight := minNode.Weight + maxShard.Weight - minShard.Weight
		newMaxWeight := maxNode.Weight - maxShard.Weight + minShard.Weight
		if newMinWeight >= newMaxWeight {
			return nil, errNoFurtherGain
		}
	}

	oldMaxPercent := s.UsedPercent(maxNode)
	oldMinPercent := s.UsedPercent(minNode)

	used.Add(maxShard.ID())
	moves := []Move{{
		Index:    maxShard.Index,
		Shard:    maxShard.Shard,
		FromNode: maxNode.Name,
		ToNode:   minNode.Name,
	}}
	if minShard != nil {
		used.Add(minShard.ID())
		moves = append(moves, Move{
			Index:    minShard.Index,
			Shard:    minShard.Shard,
			FromNode: minNode.Name,
			ToNode:   maxNode.Name,
		})
	}

	logger.Info("recommended relocation",
		zap.String("maxShard", maxShard.ID()),
		zap.String("maxShardSize", datasize.ByteSize(maxShard.Weight).HR()),
		zap.String("minShard", shardIDOrNone(minShard)),
		zap.String("minShardSize", shardSizeOrNone(minShard)))

	s.applyMove(maxShard, maxNode, minNode)
	if minShard != nil {
		s.applyMove(minShard, minNode, maxNode)
	}

	logger.Info("projected node loads",
		zap.String("maxNode", maxNode.Name),
		zap.Float64("maxNodeBefore", oldMaxPercent),
		zap.Float64("maxNodeAfter", s.UsedPercent(maxNode)),
		zap.String("minNode", minNode.Name),
		zap.Float64("minNodeBefore", oldMinPercent),
		zap.Float64("minNodeAfter", s.UsedPercent(minNode)))

	return moves, nil
}

// pickLargestEligible scans from's shards heaviest first and returns the
// first one that may legally move to dest.
func pickLargestEligible(s *Snapshot, from, dest *Node, used UsedShards) *Shard {
	for i := len(from.Shards) - 1; i >= 0; i-- {
		if shard := from.Shards[i]; eligible(s, shard, dest, used) {
			return shard
		}
	}
	return nil
}

// pickSmallestEligible scans from's shards lightest first.
func pickSmallestEligible(s *Snapshot, from, dest *Node, used UsedShards) *Shard {
	for _, shard := range from.Shards {
		if eligible(s, shard, dest, used) {
			return shard
		}
	}
	return nil
}

func eligible(s *Snapshot, shard *Shard, dest *Node, used UsedShards) bool {
	if used.Contains(shard.ID()) {
		return false
	}
	// Never co-locate two shards of the same index on one node.
	return !s.hostsIndex(dest.Name, shard.Index)
}

func shardIDOrNone(s *Shard) string {
	if s == nil {
		return "none"
	}
	return s.ID()
}

func shardSizeOrNone(s *Shard) string {
	if s == nil {
		return "none"
	}
	return datasize.ByteSize(s.Weight).HR()
}
