// Copyright 2025 slate-d35 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task provides a dependency-token graph: tasks declare the tokens
// they produce and consume, and the executor runs a task only after the
// producers of all its consumed tokens have completed. Tasks sharing no token
// relationship may run concurrently.
package task

import (
	"fmt"
	"sync"

	"github.com/liamscarlett/slate-d35/workerpool"
)

// Token is an opaque synchronization handle tied to one pipeline stage.
// Class distinguishes token families (e.g. broadcast vs. update) and Index is
// the stage number.
type Token struct {
	Class uint8
	Index int
}

type node struct {
	name     string
	run      func() error
	produces []Token
	consumes []Token

	deps       int
	dependents []*node
}

// Graph is a single-use task graph. Add every task, then call Run once.
type Graph struct {
	nodes    []*node
	producer map[Token]*node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{producer: make(map[Token]*node)}
}

// NodeOpt declares the token relationships of a task.
type NodeOpt func(*node)

// Produces declares tokens the task produces. A token may have at most one
// producer in a graph.
func Produces(toks ...Token) NodeOpt {
	return func(n *node) { n.produces = append(n.produces, toks...) }
}

// Consumes declares tokens the task consumes; the task will not start until
// every producer of those tokens has completed.
func Consumes(toks ...Token) NodeOpt {
	return func(n *node) { n.consumes = append(n.consumes, toks...) }
}

// Add registers a task.
func (g *Graph) Add(name string, run func() error, opts ...NodeOpt) {
	n := &node{name: name, run: run}
	for _, opt := range opts {
		opt(n)
	}
	for _, tok := range n.produces {
		if prev, dup := g.producer[tok]; dup {
			panic(fmt.Sprintf("task: token %v produced by both %q and %q", tok, prev.name, name))
		}
		g.producer[tok] = n
	}
	g.nodes = append(g.nodes, n)
}

// Run executes the graph on ex and blocks until every task has finished or
// been abandoned after a failure. The first task error is returned; once a
// task fails, tasks that have not started yet are not issued. A consumed
// token with no producer in the graph counts as already available.
func (g *Graph) Run(ex workerpool.Executor) error {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		first  error
		failed bool
	)

	for _, n := range g.nodes {
		seen := make(map[*node]bool)
		for _, tok := range n.consumes {
			p, ok := g.producer[tok]
			if !ok || p == n || seen[p] {
				continue
			}
			seen[p] = true
			n.deps++
			p.dependents = append(p.dependents, n)
		}
	}

	var launch func(n *node)
	launch = func(n *node) {
		wg.Add(1)
		ex.Go(func() {
			defer wg.Done()
			mu.Lock()
			skip := failed
			mu.Unlock()
			var err error
			if !skip {
				err = n.run()
			}
			mu.Lock()
			if err != nil && first == nil {
				first = err
				failed = true
			}
			ready := make([]*node, 0, len(n.dependents))
			for _, d := range n.dependents {
				d.deps--
				if d.deps == 0 {
					ready = append(ready, d)
				}
			}
			mu.Unlock()
			for _, d := range ready {
				launch(d)
			}
		})
	}

	mu.Lock()
	roots := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.deps == 0 {
			roots = append(roots, n)
		}
	}
	mu.Unlock()
	for _, n := range roots {
		launch(n)
	}
	wg.Wait()
	return first
}
