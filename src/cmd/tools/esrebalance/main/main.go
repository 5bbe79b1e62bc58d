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

// es-rebalance plans (and optionally executes) shard relocations that even
// out the load across an Elasticsearch cluster's data nodes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pborman/getopt"
	"go.uber.org/zap"

	"github.com/EDITD/elasticsearch-rebalancer/src/client"
	"github.com/EDITD/elasticsearch-rebalancer/src/rebalance"
)

func main() {
	var (
		optHost         = getopt.StringLong("host", 'H', "", "Elasticsearch host to target [e.g. localhost:9200]")
		optIterations   = getopt.IntLong("iterations", 'i', 1, "Number of rebalance iterations (swaps) to plan")
		optAttrs        = getopt.ListLong("attr", 'a', "Node attribute filter [key=value, repeatable]")
		optIndexPattern = getopt.StringLong("index-pattern", 'p', "", "Only consider indices matching this regexp")
		optPrintState   = getopt.BoolLong("print-state", 's', "Print node weights and exit without planning")
		optCommit       = getopt.BoolLong("commit", 'c', "Execute the planned shard reroutes [default: plan only]")
		optOneWay       = getopt.BoolLong("one-way", 'o', "Only move shards off the heaviest node, no return swap")
		optFromNodes    = getopt.ListLong("from-node", 'f', "Forced source (heaviest) node candidates [repeatable]")
		optToNodes      = getopt.ListLong("to-node", 't', "Forced destination (lightest) node candidates [repeatable]")
	)
	getopt.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("unable to create logger: %+v", err)
	}

	if *optHost == "" || *optIterations < 1 {
		getopt.Usage()
		os.Exit(1)
	}
	if *optPrintState && *optCommit {
		logger.Error("--print-state and --commit are mutually exclusive")
		os.Exit(1)
	}

	attrs, err := parseAttrs(*optAttrs)
	if err != nil {
		logger.Error("invalid --attr flag", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("elasticsearch rebalancer", zap.String("target", *optHost))

	esClient := client.New(*optHost, logger)
	err = run(context.Background(), esClient, logger, runOptions{
		iterations:   *optIterations,
		attrs:        attrs,
		indexPattern: *optIndexPattern,
		printState:   *optPrintState,
		commit:       *optCommit,
		oneWay:       *optOneWay,
		fromNodes:    *optFromNodes,
		toNodes:      *optToNodes,
	})
	if err != nil {
		logger.Fatal("rebalance failed", zap.Error(err))
	}
}

type runOptions struct {
	iterations   int
	attrs        map[string]string
	indexPattern string
	printState   bool
	commit       bool
	oneWay       bool
	fromNodes    []string
	toNodes      []string
}

func run(
	ctx context.Context,
	esClient client.Client,
	logger *zap.Logger,
	opts runOptions,
) error {
	executor := rebalance.NewExecutor(esClient,
		rebalance.NewExecutorOptions().SetLogger(logger))

	if opts.commit {
		// The cluster must be settled before we take over relocations.
		if err := executor.CheckHealth(ctx); err != nil {
			return err
		}
		restore, err := rebalance.DisableClusterRebalance(ctx, esClient, logger)
		if err != nil {
			return err
		}
		defer restore()
	}

	logger.Info("loading nodes")
	nodes, err := esClient.FetchNodes(ctx, opts.attrs)
	if err != nil {
		return err
	}
	logger.Info("found nodes", zap.Int("count", len(nodes)))

	logger.Info("loading shards")
	shards, err := esClient.FetchShards(ctx, opts.attrs, opts.indexPattern)
	if err != nil {
		return err
	}
	logger.Info("found shards", zap.Int("count", len(shards)))

	snapshot, err := rebalance.NewSnapshot(nodes, shards)
	if err != nil {
		return err
	}

	if opts.printState {
		printClusterState(snapshot)
		return nil
	}

	driver, err := rebalance.NewDriver(rebalance.DriverOptions{
		Iterations: opts.iterations,
		FromNodes:  opts.fromNodes,
		ToNodes:    opts.toNodes,
		OneWay:     opts.oneWay,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	moves, err := driver.Run(snapshot)
	if err != nil {
		return err
	}

	if !opts.commit {
		for _, move := range moves {
			logger.Info("planned move", zap.String("move", move.String()))
		}
		logger.Info("plan only, no moves submitted", zap.Int("moves", len(moves)))
		return nil
	}

	if err := executor.Commit(ctx, moves); err != nil {
		return err
	}
	logger.Info("cluster rebalanced", zap.Int("moves", len(moves)))
	return nil
}

func printClusterState(snapshot *rebalance.Snapshot) {
	for _, node := range snapshot.Nodes() {
		fmt.Printf("%s: %s (%.2f%%), %d shards\n", // nolint: forbidigo
			node.Name,
			datasize.ByteSize(node.Weight).HR(),
			snapshot.UsedPercent(node),
			len(node.Shards))
	}
}

func parseAttrs(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid attr %q, specify as key=value", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}
