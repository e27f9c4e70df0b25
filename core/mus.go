package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for every type persisted to the key-value
// store. Field order is part of the storage format; append new fields at the
// end and never reorder existing ones.

// MUS serializer instances.
var (
	DocumentEntryMUS     = documentEntrySer{}
	WorkspaceRecordMUS   = workspaceRecordSer{}
	VectorPointMUS       = vectorPointSer{}
	ProcessedMarkMUS     = processedMarkSer{}
	EmbeddingMetadataMUS = embeddingMetadataSer{}
	SyncErrorMUS         = syncErrorSer{}
)

// --- time ---

func marshalTime(v time.Time, buf []byte) int {
	return varint.Int64.Marshal(v.UnixMicro(), buf)
}

func unmarshalTime(buf []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(buf)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(v time.Time) int {
	return varint.Int64.Size(v.UnixMicro())
}

// --- string slice ---

func marshalStrings(v []string, buf []byte) (n int) {
	n = varint.Int.Marshal(len(v), buf)
	for _, s := range v {
		n += ord.String.Marshal(s, buf[n:])
	}
	return n
}

func unmarshalStrings(buf []byte) (v []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(buf)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make([]string, length)
	for i := 0; i < length; i++ {
		var n1 int
		v[i], n1, err = ord.String.Unmarshal(buf[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeStrings(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

// --- float32 slice ---

func marshalVector(v []float32, buf []byte) (n int) {
	n = varint.Int.Marshal(len(v), buf)
	for _, f := range v {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return n
}

func unmarshalVector(buf []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(buf)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	for i := 0; i < length; i++ {
		var n1 int
		v[i], n1, err = raw.Float32.Unmarshal(buf[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// --- EmbeddingMetadata ---

type embeddingMetadataSer struct{}

func (embeddingMetadataSer) Marshal(v EmbeddingMetadata, buf []byte) (n int) {
	n = ord.String.Marshal(v.Version, buf)
	n += varint.Int.Marshal(int(v.Provider), buf[n:])
	n += ord.String.Marshal(v.Model, buf[n:])
	n += varint.Int.Marshal(v.Dimensions, buf[n:])
	n += varint.Int.Marshal(v.ChunkCount, buf[n:])
	n += marshalTime(v.CreatedAt, buf[n:])
	return n
}

func (embeddingMetadataSer) Unmarshal(buf []byte) (v EmbeddingMetadata, n int, err error) {
	var n1 int
	if v.Version, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	var provider int
	if provider, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	v.Provider = EmbeddingProvider(provider)
	n += n1
	if v.Model, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Dimensions, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkCount, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (embeddingMetadataSer) Size(v EmbeddingMetadata) int {
	return ord.String.Size(v.Version) +
		varint.Int.Size(int(v.Provider)) +
		ord.String.Size(v.Model) +
		varint.Int.Size(v.Dimensions) +
		varint.Int.Size(v.ChunkCount) +
		sizeTime(v.CreatedAt)
}

// --- SyncErrorEntry ---

type syncErrorSer struct{}

func (syncErrorSer) Marshal(v SyncErrorEntry, buf []byte) (n int) {
	n = ord.String.Marshal(v.Stage, buf)
	n += ord.String.Marshal(v.Message, buf[n:])
	n += marshalTime(v.OccurredAt, buf[n:])
	return n
}

func (syncErrorSer) Unmarshal(buf []byte) (v SyncErrorEntry, n int, err error) {
	var n1 int
	if v.Stage, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	if v.Message, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.OccurredAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (syncErrorSer) Size(v SyncErrorEntry) int {
	return ord.String.Size(v.Stage) + ord.String.Size(v.Message) + sizeTime(v.OccurredAt)
}

// --- DocumentEntry ---

type documentEntrySer struct{}

func (documentEntrySer) Marshal(v DocumentEntry, buf []byte) (n int) {
	n = ord.String.Marshal(v.WorkspaceID, buf)
	n += ord.String.Marshal(v.SourceID, buf[n:])
	n += ord.String.Marshal(v.SourceType, buf[n:])
	n += ord.String.Marshal(v.Title, buf[n:])
	n += ord.String.Marshal(v.Fingerprint, buf[n:])
	n += marshalTime(v.SourceModifiedAt, buf[n:])
	n += varint.Int.Marshal(int(v.Status), buf[n:])
	n += marshalStrings(v.PointIDs, buf[n:])
	n += varint.Int.Marshal(v.ChunkCount, buf[n:])
	n += EmbeddingMetadataMUS.Marshal(v.Embedding, buf[n:])
	n += ord.String.Marshal(v.Summary, buf[n:])
	n += varint.Int.Marshal(len(v.Errors), buf[n:])
	for _, e := range v.Errors {
		n += SyncErrorMUS.Marshal(e, buf[n:])
	}
	n += marshalTime(v.InsertedAt, buf[n:])
	n += marshalTime(v.UpdatedAt, buf[n:])
	return n
}

func (documentEntrySer) Unmarshal(buf []byte) (v DocumentEntry, n int, err error) {
	var n1 int
	if v.WorkspaceID, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	if v.SourceID, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceType, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Title, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Fingerprint, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceModifiedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	var status int
	if status, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	v.Status = SyncStatus(status)
	n += n1
	if v.PointIDs, n1, err = unmarshalStrings(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkCount, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Embedding, n1, err = EmbeddingMetadataMUS.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Summary, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	var errCount int
	if errCount, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if errCount > 0 {
		v.Errors = make([]SyncErrorEntry, errCount)
		for i := 0; i < errCount; i++ {
			if v.Errors[i], n1, err = SyncErrorMUS.Unmarshal(buf[n:]); err != nil {
				return v, n + n1, err
			}
			n += n1
		}
	}
	if v.InsertedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (documentEntrySer) Size(v DocumentEntry) (size int) {
	size = ord.String.Size(v.WorkspaceID) +
		ord.String.Size(v.SourceID) +
		ord.String.Size(v.SourceType) +
		ord.String.Size(v.Title) +
		ord.String.Size(v.Fingerprint) +
		sizeTime(v.SourceModifiedAt) +
		varint.Int.Size(int(v.Status)) +
		sizeStrings(v.PointIDs) +
		varint.Int.Size(v.ChunkCount) +
		EmbeddingMetadataMUS.Size(v.Embedding) +
		ord.String.Size(v.Summary) +
		varint.Int.Size(len(v.Errors))
	for _, e := range v.Errors {
		size += SyncErrorMUS.Size(e)
	}
	size += sizeTime(v.InsertedAt) + sizeTime(v.UpdatedAt)
	return size
}

// --- WorkspaceRecord ---

type workspaceRecordSer struct{}

func (workspaceRecordSer) Marshal(v WorkspaceRecord, buf []byte) (n int) {
	n = ord.String.Marshal(v.ID, buf)
	n += varint.Int.Marshal(int(v.Trust), buf[n:])
	n += ord.Bool.Marshal(v.PreferCloud, buf[n:])
	n += ord.Bool.Marshal(v.CloudConsent, buf[n:])
	n += ord.Bool.Marshal(v.NeedsReview, buf[n:])
	n += varint.Int.Marshal(int(v.PriorTrust), buf[n:])
	n += marshalStrings(v.DetectedPatterns, buf[n:])
	n += marshalTime(v.UpdatedAt, buf[n:])
	return n
}

func (workspaceRecordSer) Unmarshal(buf []byte) (v WorkspaceRecord, n int, err error) {
	var n1 int
	if v.ID, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	var trust int
	if trust, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	v.Trust = TrustLevel(trust)
	n += n1
	if v.PreferCloud, n1, err = ord.Bool.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CloudConsent, n1, err = ord.Bool.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.NeedsReview, n1, err = ord.Bool.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	var prior int
	if prior, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	v.PriorTrust = TrustLevel(prior)
	n += n1
	if v.DetectedPatterns, n1, err = unmarshalStrings(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (workspaceRecordSer) Size(v WorkspaceRecord) int {
	return ord.String.Size(v.ID) +
		varint.Int.Size(int(v.Trust)) +
		ord.Bool.Size(v.PreferCloud) +
		ord.Bool.Size(v.CloudConsent) +
		ord.Bool.Size(v.NeedsReview) +
		varint.Int.Size(int(v.PriorTrust)) +
		sizeStrings(v.DetectedPatterns) +
		sizeTime(v.UpdatedAt)
}

// --- VectorPoint ---

type vectorPointSer struct{}

func (vectorPointSer) Marshal(v VectorPoint, buf []byte) (n int) {
	n = ord.String.Marshal(v.ID, buf)
	n += ord.String.Marshal(v.WorkspaceID, buf[n:])
	n += ord.String.Marshal(v.SourceID, buf[n:])
	n += ord.String.Marshal(v.Fingerprint, buf[n:])
	n += varint.Int.Marshal(v.ChunkIndex, buf[n:])
	n += ord.String.Marshal(v.Text, buf[n:])
	n += ord.String.Marshal(v.HeadingPath, buf[n:])
	n += marshalVector(v.Vector, buf[n:])
	n += marshalTime(v.InsertedAt, buf[n:])
	return n
}

func (vectorPointSer) Unmarshal(buf []byte) (v VectorPoint, n int, err error) {
	var n1 int
	if v.ID, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	if v.WorkspaceID, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceID, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Fingerprint, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkIndex, n1, err = varint.Int.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.HeadingPath, n1, err = ord.String.Unmarshal(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Vector, n1, err = unmarshalVector(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InsertedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (vectorPointSer) Size(v VectorPoint) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.WorkspaceID) +
		ord.String.Size(v.SourceID) +
		ord.String.Size(v.Fingerprint) +
		varint.Int.Size(v.ChunkIndex) +
		ord.String.Size(v.Text) +
		ord.String.Size(v.HeadingPath) +
		sizeVector(v.Vector) +
		sizeTime(v.InsertedAt)
}

// --- ProcessedMark ---

type processedMarkSer struct{}

func (processedMarkSer) Marshal(v ProcessedMark, buf []byte) (n int) {
	n = ord.String.Marshal(v.Result, buf)
	n += marshalTime(v.CompletedAt, buf[n:])
	return n
}

func (processedMarkSer) Unmarshal(buf []byte) (v ProcessedMark, n int, err error) {
	var n1 int
	if v.Result, n1, err = ord.String.Unmarshal(buf); err != nil {
		return v, n1, err
	}
	n = n1
	if v.CompletedAt, n1, err = unmarshalTime(buf[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (processedMarkSer) Size(v ProcessedMark) int {
	return ord.String.Size(v.Result) + sizeTime(v.CompletedAt)
}
