package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// TrustLevel is a workspace-scoped sensitivity classification that governs
// which embedding provider may be used for the workspace's content.
type TrustLevel int

const (
	// TrustPublic marks content safe for any provider.
	TrustPublic TrustLevel = iota + 1
	// TrustInternal marks content that may leave the premises only with consent.
	TrustInternal
	// TrustRegulated marks content that must never leave local infrastructure.
	TrustRegulated
)

// String returns the canonical lowercase name of the trust level.
func (t TrustLevel) String() string {
	switch t {
	case TrustPublic:
		return "public"
	case TrustInternal:
		return "internal"
	case TrustRegulated:
		return "regulated"
	default:
		return "unknown"
	}
}

// SyncStatus tracks the ingestion state of a registered document.
type SyncStatus int

const (
	// SyncPending indicates the document has been sighted but not yet indexed.
	SyncPending SyncStatus = iota + 1
	// SyncSynced indicates the document's current content is fully indexed.
	SyncSynced
	// SyncError indicates the last ingestion attempt failed.
	SyncError
	// SyncDeleted indicates the document was soft-deleted.
	SyncDeleted
)

// String returns the canonical lowercase name of the sync status.
func (s SyncStatus) String() string {
	switch s {
	case SyncPending:
		return "pending"
	case SyncSynced:
		return "synced"
	case SyncError:
		return "error"
	case SyncDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// EmbeddingProvider identifies which embedding backend produced a vector.
type EmbeddingProvider int

const (
	// ProviderLocal is the on-premise OpenAI-compatible embedding service.
	ProviderLocal EmbeddingProvider = iota + 1
	// ProviderCloud is the hosted embedding service.
	ProviderCloud
)

// String returns the canonical lowercase name of the provider.
func (p EmbeddingProvider) String() string {
	switch p {
	case ProviderLocal:
		return "local"
	case ProviderCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// Fingerprint generates a deterministic content fingerprint using BLAKE2b hashing.
// Identical content always produces the identical fingerprint.
func Fingerprint(content string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Chunk is one semantically split piece of a document, as returned by the
// chunk splitter. Chunks are embedded and indexed individually.
type Chunk struct {
	Text          string
	TokenEstimate int
	HeadingPath   string
	Category      string
}

// EmbeddingMetadata records which embedding configuration produced the
// vectors currently indexed for a document. It is compared against the
// current EmbeddingSpec to decide migration eligibility.
type EmbeddingMetadata struct {
	Version    string
	Provider   EmbeddingProvider
	Model      string
	Dimensions int
	ChunkCount int
	CreatedAt  time.Time
}

// Present reports whether metadata has been recorded at all.
func (m EmbeddingMetadata) Present() bool {
	return m.Version != ""
}

// SyncErrorEntry is one entry of a document's bounded error log.
type SyncErrorEntry struct {
	Stage      string
	Message    string
	OccurredAt time.Time
}

// MaxSyncErrors bounds the per-document error log. Older entries are dropped.
const MaxSyncErrors = 5

// maxSyncErrorLen bounds the retained message length of a single error.
const maxSyncErrorLen = 500

// DocumentEntry is the registry record for one (workspace, source document)
// pair. Entries are unique per (WorkspaceID, SourceID), created on first
// sighting, mutated on successful index commits, and soft-deleted rather
// than physically removed.
type DocumentEntry struct {
	WorkspaceID      string
	SourceID         string
	SourceType       string
	Title            string
	Fingerprint      string
	SourceModifiedAt time.Time
	Status           SyncStatus
	PointIDs         []string
	ChunkCount       int
	Embedding        EmbeddingMetadata
	Summary          string
	Errors           []SyncErrorEntry
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// RecordError appends an entry to the bounded error log, dropping the oldest
// entries beyond MaxSyncErrors and truncating overlong messages.
func (d *DocumentEntry) RecordError(stage, message string, at time.Time) {
	if len(message) > maxSyncErrorLen {
		message = message[:maxSyncErrorLen]
	}
	d.Errors = append(d.Errors, SyncErrorEntry{Stage: stage, Message: message, OccurredAt: at})
	if len(d.Errors) > MaxSyncErrors {
		d.Errors = d.Errors[len(d.Errors)-MaxSyncErrors:]
	}
}

// LastError returns the most recent error log entry, or nil if none exists.
func (d *DocumentEntry) LastError() *SyncErrorEntry {
	if len(d.Errors) == 0 {
		return nil
	}
	return &d.Errors[len(d.Errors)-1]
}

// WorkspaceRecord holds per-workspace classification and embedding consent
// settings. The trust level may be upgraded by the sensitive-content scanner.
type WorkspaceRecord struct {
	ID               string
	Trust            TrustLevel
	PreferCloud      bool
	CloudConsent     bool
	NeedsReview      bool
	PriorTrust       TrustLevel
	DetectedPatterns []string
	UpdatedAt        time.Time
}

// DefaultWorkspace returns the record used for a workspace that has never
// been configured. Unclassified content is treated as internal.
func DefaultWorkspace(id string) *WorkspaceRecord {
	return &WorkspaceRecord{ID: id, Trust: TrustInternal}
}

// VectorPoint is one embedded chunk as stored in the dense index. The ID is
// the opaque index-entry handle referenced by DocumentEntry.PointIDs.
type VectorPoint struct {
	ID          string
	WorkspaceID string
	SourceID    string
	Fingerprint string
	ChunkIndex  int
	Text        string
	HeadingPath string
	Vector      []float32
	InsertedAt  time.Time
}

// PointMatch is a dense-index hit with its similarity score.
type PointMatch struct {
	Point *VectorPoint
	Score float32
}

// ProcessedMark is the stored value of an idempotency key: what the original
// execution produced and when it finished.
type ProcessedMark struct {
	Result      string
	CompletedAt time.Time
}
