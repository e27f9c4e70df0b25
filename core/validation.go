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

import "fmt"

// ValidateDocumentEntry validates a DocumentEntry according to domain rules.
//
// Validation rules:
//   - WorkspaceID and SourceID must not be empty
//   - Status must be a valid SyncStatus
//
// NOT validated (populated during ingestion):
//   - PointIDs / ChunkCount (empty until the Index stage commits)
//   - Embedding (absent until first indexed)
//   - Fingerprint (empty until first fetched)
func ValidateDocumentEntry(entry *DocumentEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidDocument)
	}

	if entry.WorkspaceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyWorkspaceID)
	}

	if entry.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySourceID)
	}

	if err := ValidateSyncStatus(entry.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateWorkspaceRecord validates a WorkspaceRecord according to domain rules.
func ValidateWorkspaceRecord(record *WorkspaceRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidWorkspace)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspace, ErrEmptyWorkspaceID)
	}

	if err := ValidateTrustLevel(record.Trust); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspace, err)
	}

	return nil
}

// ValidateVectorPoint validates a VectorPoint according to domain rules.
func ValidateVectorPoint(point *VectorPoint) error {
	if point == nil {
		return fmt.Errorf("%w: point is nil", ErrInvalidPoint)
	}

	if point.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyPointID)
	}

	if point.WorkspaceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyWorkspaceID)
	}

	if point.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptySourceID)
	}

	return nil
}

// ValidateTrustLevel validates that a TrustLevel has a valid value.
func ValidateTrustLevel(trust TrustLevel) error {
	if trust != TrustPublic && trust != TrustInternal && trust != TrustRegulated {
		return fmt.Errorf("%w: value %d", ErrInvalidTrustLevel, trust)
	}
	return nil
}

// ValidateSyncStatus validates that a SyncStatus has a valid value.
func ValidateSyncStatus(status SyncStatus) error {
	switch status {
	case SyncPending, SyncSynced, SyncError, SyncDeleted:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidSyncStatus, status)
	}
}

// ValidateProvider validates that an EmbeddingProvider has a valid value.
func ValidateProvider(provider EmbeddingProvider) error {
	if provider != ProviderLocal && provider != ProviderCloud {
		return fmt.Errorf("%w: value %d", ErrInvalidProvider, provider)
	}
	return nil
}
