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

package slate

import (
	"fmt"

	"github.com/liamscarlett/slate-d35/task"
	"github.com/liamscarlett/slate-d35/workerpool"
)

// Token classes of the pipeline: B[k] marks "disseminate of step k done",
// A[k] marks "advance of step k done".
const (
	tokBcast uint8 = iota
	tokAdvance
)

// pipeline runs a blocked algorithm of `steps` sequential panel steps, each
// with a disseminate action (broadcast the data step k contributes) and an
// advance action (apply the accumulated update), overlapped across steps.
//
// Dependencies:
//   - disseminate(k) produces B[k]; it consumes B[k-1] and A[k-lookahead-1],
//     so broadcasts run at most `lookahead` steps ahead of the advances.
//   - advance(k) consumes B[k] and A[k-1] and produces A[k]; advances are
//     strictly serialized because they mutate the shared trailing matrix.
//   - panelBound > 0 additionally gates disseminate(k) on A[k-panelBound],
//     for algorithms whose step-k panel is produced by an earlier advance
//     (LU, band reduction). Zero keeps the pure broadcast pipeline.
//
// The observable result is identical for every lookahead value and backend;
// only overlap differs. Stage errors abort the remaining steps and propagate
// to the caller. Stages may block on transport, so they run on their own
// goroutines rather than on the compute pool.
type pipeline struct {
	steps      int
	lookahead  int
	panelBound int

	disseminate func(k int) error
	advance     func(k int) error
}

func (p *pipeline) run() error {
	g := task.NewGraph()
	for k := range p.steps {
		var dcons []task.Token
		if k > 0 {
			dcons = append(dcons, task.Token{Class: tokBcast, Index: k - 1})
		}
		if j := k - p.lookahead - 1; j >= 0 {
			dcons = append(dcons, task.Token{Class: tokAdvance, Index: j})
		}
		if p.panelBound > 0 {
			if j := k - p.panelBound; j >= 0 {
				dcons = append(dcons, task.Token{Class: tokAdvance, Index: j})
			}
		}
		g.Add(fmt.Sprintf("disseminate(%d)", k), func() error { return p.disseminate(k) },
			task.Produces(task.Token{Class: tokBcast, Index: k}),
			task.Consumes(dcons...))

		acons := []task.Token{{Class: tokBcast, Index: k}}
		if k > 0 {
			acons = append(acons, task.Token{Class: tokAdvance, Index: k - 1})
		}
		g.Add(fmt.Sprintf("advance(%d)", k), func() error { return p.advance(k) },
			task.Produces(task.Token{Class: tokAdvance, Index: k}),
			task.Consumes(acons...))
	}
	return g.Run(workerpool.Async{})
}
