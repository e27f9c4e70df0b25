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


package storage

import (
	"github.com/poiesic/indexit/core"
)

// MarshalDocumentEntry serializes a DocumentEntry to bytes.
func MarshalDocumentEntry(entry *core.DocumentEntry) []byte {
	buf := make([]byte, core.DocumentEntryMUS.Size(*entry))
	core.DocumentEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalDocumentEntry deserializes a DocumentEntry from bytes.
func UnmarshalDocumentEntry(data []byte) (*core.DocumentEntry, error) {
	entry, _, err := core.DocumentEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalWorkspaceRecord serializes a WorkspaceRecord to bytes.
func MarshalWorkspaceRecord(record *core.WorkspaceRecord) []byte {
	buf := make([]byte, core.WorkspaceRecordMUS.Size(*record))
	core.WorkspaceRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalWorkspaceRecord deserializes a WorkspaceRecord from bytes.
func UnmarshalWorkspaceRecord(data []byte) (*core.WorkspaceRecord, error) {
	record, _, err := core.WorkspaceRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalVectorPoint serializes a VectorPoint to bytes.
func MarshalVectorPoint(point *core.VectorPoint) []byte {
	buf := make([]byte, core.VectorPointMUS.Size(*point))
	core.VectorPointMUS.Marshal(*point, buf)
	return buf
}

// UnmarshalVectorPoint deserializes a VectorPoint from bytes.
func UnmarshalVectorPoint(data []byte) (*core.VectorPoint, error) {
	point, _, err := core.VectorPointMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// MarshalProcessedMark serializes a ProcessedMark to bytes.
func MarshalProcessedMark(mark *core.ProcessedMark) []byte {
	buf := make([]byte, core.ProcessedMarkMUS.Size(*mark))
	core.ProcessedMarkMUS.Marshal(*mark, buf)
	return buf
}

// UnmarshalProcessedMark deserializes a ProcessedMark from bytes.
func UnmarshalProcessedMark(data []byte) (*core.ProcessedMark, error) {
	mark, _, err := core.ProcessedMarkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &mark, nil
}
