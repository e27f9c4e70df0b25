// Copyright 2025 Poiesic Systems
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


package indexer

import (
	"errors"
	"fmt"
)

// ErrVerificationFailed is the sentinel matched by errors.Is for any
// VerificationError.
var ErrVerificationFailed = errors.New("index verification failed")

// VerificationError reports that the dense index did not confirm the
// expected number of new points. The previous document version remains
// searchable.
type VerificationError struct {
	WorkspaceID string
	SourceID    string
	Expected    int
	Actual      int

	// OldChunksPreserved is always true: verification failure never removes
	// the previous version's index entries.
	OldChunksPreserved bool
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("index verification failed for %s/%s: expected %d points, found %d (previous version preserved)",
		e.WorkspaceID, e.SourceID, e.Expected, e.Actual)
}

// Is matches ErrVerificationFailed.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
