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

// Package comm is the message-passing transport collaborator: a group of SPMD
// ranks exchanging tagged messages through in-process mailboxes. Ranks share
// no memory through this package; every exchange is an explicit send/receive,
// so algorithms written against it keep the ownership discipline of a real
// multi-process transport.
package comm

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/liamscarlett/slate-d35/tile"
)

// Tag identifies a point-to-point or collective exchange. Concurrent
// operations between the same pair of ranks must use distinct tags; the
// fields carry the operation kind and the step/tile coordinates that make a
// tag unique within one algorithm invocation.
type Tag struct {
	Op      uint8
	K, I, J int
}

type message struct {
	from    int
	tag     Tag
	payload any
}

// mailbox holds undelivered messages for one rank. Senders never block;
// receivers wait until a matching message arrives.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []message
}

func newMailbox() *mailbox {
	b := &mailbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *mailbox) put(m message) {
	b.mu.Lock()
	b.pending = append(b.pending, m)
	b.mu.Unlock()
	b.cond.Broadcast()
}

func (b *mailbox) get(from int, tag Tag) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for i, m := range b.pending {
			if m.from == from && m.tag == tag {
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				return m.payload
			}
		}
		b.cond.Wait()
	}
}

// Group is a fixed-size set of ranks. All ranks run the same SPMD function;
// collectives must be entered by every rank they involve.
type Group struct {
	size  int
	boxes []*mailbox

	bmu   sync.Mutex
	bcond *sync.Cond
	bcnt  int
	bgen  int
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) *Group {
	if size <= 0 {
		panic("comm: group size must be positive")
	}
	g := &Group{size: size, boxes: make([]*mailbox, size)}
	for i := range size {
		g.boxes[i] = newMailbox()
	}
	g.bcond = sync.NewCond(&g.bmu)
	return g
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.size }

// Run executes fn once per rank, each on its own goroutine, and returns the
// first error any rank produced.
func (g *Group) Run(fn func(c *Comm) error) error {
	var eg errgroup.Group
	for r := range g.size {
		c := &Comm{rank: r, g: g}
		eg.Go(func() error { return fn(c) })
	}
	return eg.Wait()
}

// Comm is one rank's endpoint into its group.
type Comm struct {
	rank int
	g    *Group
}

// Rank returns this endpoint's rank in [0, Size).
func (c *Comm) Rank() int { return c.rank }

// Size returns the group size.
func (c *Comm) Size() int { return c.g.size }

// Send delivers payload to rank `to` without blocking. Payload slices are
// passed by reference: the receiver owns the message and must copy before the
// sender may mutate the buffer again.
func (c *Comm) Send(to int, tag Tag, payload any) {
	if to == c.rank {
		panic("comm: send to self")
	}
	c.g.boxes[to].put(message{from: c.rank, tag: tag, payload: payload})
}

// Recv blocks until a message with the given source and tag arrives and
// returns its payload.
func (c *Comm) Recv(from int, tag Tag) any {
	return c.g.boxes[c.rank].get(from, tag)
}

// Multicast sends root's payload to every rank in dests. Every rank in
// {root} ∪ dests must call it with identical arguments; ranks outside the set
// return nil immediately. The root returns its own payload, destinations
// return the received one.
func (c *Comm) Multicast(root int, dests []int, tag Tag, payload any) any {
	if c.rank == root {
		for _, d := range dests {
			if d != root {
				c.Send(d, tag, payload)
			}
		}
		return payload
	}
	for _, d := range dests {
		if d == c.rank {
			return c.Recv(root, tag)
		}
	}
	return nil
}

// Bcast sends root's payload to every other rank in the group.
func (c *Comm) Bcast(root int, tag Tag, payload any) any {
	if c.rank == root {
		for r := range c.g.size {
			if r != root {
				c.Send(r, tag, payload)
			}
		}
		return payload
	}
	return c.Recv(root, tag)
}

// Barrier blocks until every rank in the group has entered it.
func (c *Comm) Barrier() {
	g := c.g
	g.bmu.Lock()
	gen := g.bgen
	g.bcnt++
	if g.bcnt == g.size {
		g.bcnt = 0
		g.bgen++
		g.bcond.Broadcast()
		g.bmu.Unlock()
		return
	}
	for gen == g.bgen {
		g.bcond.Wait()
	}
	g.bmu.Unlock()
}

// AllReduceSum replaces v on every rank with the element-wise sum of all
// ranks' v. Implemented as gather to rank 0 plus broadcast.
func AllReduceSum[T tile.Floats](c *Comm, tag Tag, v []T) {
	allReduce(c, tag, v, func(a, b T) T { return a + b })
}

// AllReduceMax replaces v on every rank with the element-wise maximum of all
// ranks' v.
func AllReduceMax[T tile.Floats](c *Comm, tag Tag, v []T) {
	allReduce(c, tag, v, func(a, b T) T {
		if b > a {
			return b
		}
		return a
	})
}

func allReduce[T tile.Floats](c *Comm, tag Tag, v []T, op func(a, b T) T) {
	if c.Size() == 1 {
		return
	}
	if c.rank == 0 {
		for r := 1; r < c.Size(); r++ {
			part := c.Recv(r, tag).([]T)
			for i := range v {
				v[i] = op(v[i], part[i])
			}
		}
		for r := 1; r < c.Size(); r++ {
			c.Send(r, tag, append([]T(nil), v...))
		}
		return
	}
	c.Send(0, tag, append([]T(nil), v...))
	copy(v, c.Recv(0, tag).([]T))
}
