package vector

import "strconv"

// fingerprintPrefixLen is how many fingerprint characters participate in a
// point ID. Enough to make point IDs for different content versions of the
// same source distinct.
const fingerprintPrefixLen = 8

// PointID builds the index-entry handle for one chunk of a document version.
func PointID(sourceID, fingerprint string, chunkIndex int) string {
	fp := fingerprint
	if len(fp) > fingerprintPrefixLen {
		fp = fp[:fingerprintPrefixLen]
	}
	return sourceID + "_" + fp + "_chunk_" + strconv.Itoa(chunkIndex)
}
