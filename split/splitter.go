package split

import (
	"context"

	"github.com/poiesic/indexit/core"
)

// Splitter turns raw document content into an ordered list of chunks with
// token estimates. Implementations must be thread-safe for concurrent use.
type Splitter interface {
	// Split chunks the given content. When blocks is non-nil it carries
	// structural block texts from the source connector and each block is
	// chunked separately, preserving block boundaries.
	// A zero-chunk result is valid (e.g. whitespace-only content).
	Split(ctx context.Context, content string, blocks []string) ([]core.Chunk, error)
}
