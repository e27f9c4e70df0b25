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


package badger

import (
	"time"

	"github.com/poiesic/indexit/storage"
)

// MemoryRepositories bundles in-memory repositories for testing.
type MemoryRepositories struct {
	Backend    *Backend
	Documents  storage.DocumentRepository
	Workspaces storage.WorkspaceRepository
	Points     storage.PointRepository
	Processed  storage.ProcessedStore
}

// NewMemoryRepositories creates in-memory repositories on a shared backend
// for testing. Caller must call Close when done.
func NewMemoryRepositories() (*MemoryRepositories, error) {
	return NewMemoryRepositoriesTTL(DefaultProcessedTTL)
}

// NewMemoryRepositoriesTTL is NewMemoryRepositories with a custom idempotency
// retention window, for tests exercising TTL expiry.
func NewMemoryRepositoriesTTL(processedTTL time.Duration) (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	workspaces, err := NewWorkspaceRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	points, err := NewPointRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	processed, err := NewProcessedStore(backend, processedTTL)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryRepositories{
		Backend:    backend,
		Documents:  docs,
		Workspaces: workspaces,
		Points:     points,
		Processed:  processed,
	}, nil
}

// Close closes all repositories and the backend.
func (m *MemoryRepositories) Close() error {
	m.Documents.Close()
	m.Workspaces.Close()
	m.Points.Close()
	m.Processed.Close()
	return m.Backend.Close()
}
