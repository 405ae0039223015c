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
	"errors"
	"fmt"
)

// Sentinel errors. Callers match with errors.Is; SingularError is matched
// with errors.As to recover the pivot index.
var (
	// ErrBadConfig reports a malformed option value, detected at call entry
	// before any tile allocation.
	ErrBadConfig = errors.New("slate: invalid configuration")

	// ErrShape reports incompatible matrix dimensions or distributions.
	ErrShape = errors.New("slate: incompatible matrix shapes")

	// ErrNotConverged reports that iterative refinement missed the tolerance
	// within the iteration cap and no fallback solver was enabled.
	ErrNotConverged = errors.New("slate: iterative refinement did not converge")
)

// SingularError reports an exactly-zero pivot during a factorization.
// Index is 1-based; the factorization produced no usable factors at or past
// that position and no solution was computed.
type SingularError struct {
	Index int
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("slate: exactly singular pivot at index %d", e.Index)
}
