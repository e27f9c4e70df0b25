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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a DocumentEntry failed validation.
	ErrInvalidDocument = errors.New("invalid document entry")

	// ErrInvalidWorkspace indicates a WorkspaceRecord failed validation.
	ErrInvalidWorkspace = errors.New("invalid workspace record")

	// ErrInvalidPoint indicates a VectorPoint failed validation.
	ErrInvalidPoint = errors.New("invalid vector point")

	// ErrEmptyWorkspaceID indicates a missing workspace identifier.
	ErrEmptyWorkspaceID = errors.New("workspace id cannot be empty")

	// ErrEmptySourceID indicates a missing source document identifier.
	ErrEmptySourceID = errors.New("source id cannot be empty")

	// ErrEmptyPointID indicates a missing vector point identifier.
	ErrEmptyPointID = errors.New("point id cannot be empty")

	// ErrInvalidTrustLevel indicates an invalid TrustLevel value.
	ErrInvalidTrustLevel = errors.New("invalid trust level")

	// ErrInvalidSyncStatus indicates an invalid SyncStatus value.
	ErrInvalidSyncStatus = errors.New("invalid sync status")

	// ErrInvalidProvider indicates an invalid EmbeddingProvider value.
	ErrInvalidProvider = errors.New("invalid embedding provider")
)
