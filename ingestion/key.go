package ingestion

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// IdempotencyKey derives the processed-store key for one stage execution.
// The fingerprint makes keys version-specific: re-ingesting changed content
// yields fresh keys while duplicate submissions of the same content collide
// and are suppressed.
func IdempotencyKey(workspaceID, sourceID string, stage Stage, fingerprint string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(workspaceID))
	h.Write([]byte{'|'})
	h.Write([]byte(sourceID))
	h.Write([]byte{'|'})
	h.Write([]byte(stage.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
