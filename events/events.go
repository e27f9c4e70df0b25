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


package events

import "time"

// Type identifies what happened.
type Type string

const (
	// TypeStageCompleted fires when one pipeline stage finishes for a document.
	TypeStageCompleted Type = "stage.completed"
	// TypeStageFailed fires when a stage attempt fails.
	TypeStageFailed Type = "stage.failed"
	// TypePipelineCompleted fires when the terminal stage finishes a
	// document's chain; Detail carries the total pipeline duration.
	TypePipelineCompleted Type = "pipeline.completed"
	// TypeDocumentIndexed fires when a document version becomes searchable.
	TypeDocumentIndexed Type = "document.indexed"
	// TypeDocumentDeleted fires when a document is soft-deleted.
	TypeDocumentDeleted Type = "document.deleted"
	// TypeTrustUpgraded fires when a scan raises a workspace's trust level.
	TypeTrustUpgraded Type = "workspace.trust_upgraded"
	// TypeMigrationStarted fires when an embedding migration begins.
	TypeMigrationStarted Type = "migration.started"
	// TypeMigrationProgress fires after each migration batch.
	TypeMigrationProgress Type = "migration.progress"
	// TypeMigrationFinished fires when a migration completes or is cancelled.
	TypeMigrationFinished Type = "migration.finished"
)

// Event is one notification. Fields beyond Type and At are filled when they
// apply to the event type.
type Event struct {
	Type        Type
	At          time.Time
	WorkspaceID string
	SourceID    string
	Stage       string
	Detail      string
	Err         error
}

// Publisher receives pipeline notifications. Publishing is fire-and-forget:
// implementations must not block the pipeline and cannot fail it.
type Publisher interface {
	Publish(event Event)
}
