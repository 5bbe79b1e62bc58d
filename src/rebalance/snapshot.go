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

// Package rebalance plans and executes shard moves that reduce load imbalance
// across the nodes of an Elasticsearch cluster. Planning is a greedy pairwise
// heuristic: each iteration swaps (or one-way moves) shards between the
// heaviest and lightest nodes, simulating the result in memory so later
// iterations plan against up-to-date weights.
package rebalance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
)

var (
	errNoNodes  = errors.New("no nodes with assigned shards found")
	errNoShards = errors.New("no shards found")
)

// A Shard is one shard of an index, weighted by its on-disk size.
type Shard struct {
	Index  string
	Shard  int
	Weight int64
	Node   string
}

// ID returns the unique identity of the shard.
func (s *Shard) ID() string {
	return fmt.Sprintf("%s-%d", s.Index, s.Shard)
}

// A Node is a cluster node and the shards currently assigned to it, kept
// sorted ascending by weight. Weight is always the sum of the assigned
// shards' weights; the planner is the only thing that changes it, and only
// via Snapshot.applyMove.
type Node struct {
	Name   string
	Weight int64
	Shards []*Shard
}

// A Snapshot is the in-memory view of the cluster the planner works on. It
// is owned by a single run; there is no concurrent access.
type Snapshot struct {
	nodes       []*Node
	nodesByName map[string]*Node
	// indexNodes counts, per index, how many shards of that index each
	// node hosts. It backs the co-location constraint: a shard must never
	// be moved onto a node that already holds a copy of its index.
	indexNodes map[string]map[string]int
}

// NewSnapshot joins filtered node and shard inventories into a Snapshot.
// Nodes without any assigned shard are discarded, as they cannot take part
// in a swap. Shards assigned to nodes outside the filtered set are ignored.
func NewSnapshot(nodes []client.NodeRecord, shards []client.ShardRecord) (*Snapshot, error) {
	if len(nodes) == 0 {
		return nil, errNoNodes
	}
	if len(shards) == 0 {
		return nil, errNoShards
	}

	s := &Snapshot{
		nodesByName: make(map[string]*Node, len(nodes)),
		indexNodes:  make(map[string]map[string]int),
	}
	for _, record := range nodes {
		s.nodesByName[record.Name] = &Node{Name: record.Name}
	}

	for _, record := range shards {
		node, ok := s.nodesByName[record.Node]
		if !ok {
			continue
		}
		shard := &Shard{
			Index:  record.Index,
			Shard:  record.Shard,
			Weight: record.SizeBytes,
			Node:   record.Node,
		}
		node.Shards = append(node.Shards, shard)
		node.Weight += shard.Weight
		hosts := s.indexNodes[shard.Index]
		if hosts == nil {
			hosts = make(map[string]int)
			s.indexNodes[shard.Index] = hosts
		}
		hosts[node.Name]++
	}

	for name, node := range s.nodesByName {
		if len(node.Shards) == 0 {
			delete(s.nodesByName, name)
			continue
		}
		sortShards(node.Shards)
		s.nodes = append(s.nodes, node)
	}
	if len(s.nodes) == 0 {
		return nil, errNoNodes
	}
	s.sortNodes()
	return s, nil
}

// Nodes returns the nodes ordered ascending by weight.
func (s *Snapshot) Nodes() []*Node {
	return s.nodes
}

// Node returns the named node, or nil if it is not part of the snapshot.
func (s *Snapshot) Node(name string) *Node {
	return s.nodesByName[name]
}

// MinNode returns the lightest node.
func (s *Snapshot) MinNode() *Node {
	return s.nodes[0]
}

// MaxNode returns the heaviest node.
func (s *Snapshot) MaxNode() *Node {
	return s.nodes[len(s.nodes)-1]
}

// UsedPercent returns the node's weight as a percentage of the heaviest
// node's weight. Reporting only, the planner never consults it.
func (s *Snapshot) UsedPercent(n *Node) float64 {
	max := s.MaxNode().Weight
	if max == 0 {
		return 0
	}
	return float64(n.Weight) / float64(max) * 100
}

// hostsIndex reports whether the named node holds any shard of the index.
func (s *Snapshot) hostsIndex(nodeName, index string) bool {
	return s.indexNodes[index][nodeName] > 0
}

// applyMove simulates relocating shard from one node to another: weights,
// shard lists, the co-location index and the node ordering are all updated.
// No I/O happens here; this is planner bookkeeping only.
func (s *Snapshot) applyMove(shard *Shard, from, to *Node) {
	for i, sh := range from.Shards {
		if sh == shard {
			from.Shards = append(from.Shards[:i], from.Shards[i+1:]...)
			break
		}
	}
	from.Weight -= shard.Weight

	shard.Node = to.Name
	to.Shards = append(to.Shards, shard)
	to.Weight += shard.Weight
	sortShards(to.Shards)

	hosts := s.indexNodes[shard.Index]
	hosts[from.Name]--
	if hosts[from.Name] <= 0 {
		delete(hosts, from.Name)
	}
	hosts[to.Name]++

	s.sortNodes()
}

// sortNodes orders nodes ascending by weight, ties broken by name so the
// ordering is deterministic regardless of discovery order.
func (s *Snapshot) sortNodes() {
	sort.Slice(s.nodes, func(i, j int) bool {
		if s.nodes[i].Weight != s.nodes[j].Weight {
			return s.nodes[i].Weight < s.nodes[j].Weight
		}
		return s.nodes[i].Name < s.nodes[j].Name
	})
}

func sortShards(shards []*Shard) {
	sort.Slice(shards, func(i, j int) bool {
		if shards[i].Weight != shards[j].Weight {
			return shards[i].Weight < shards[j].Weight
		}
		if shards[i].Index != shards[j].Index {
			return shards[i].Index < shards[j].Index
		}
		return shards[i].Shard < shards[j].Shard
	})
}
