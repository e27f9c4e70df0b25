package badger

import "fmt"

// Key prefixes for different data types
const (
	documentPrefix  = "docent"
	workspacePrefix = "wsrec"
	pointPrefix     = "vecpt"
	processedPrefix = "idkey"
)

// keySep separates key segments. Workspace and source ids must not contain it.
const keySep = ":"

// makeDocumentKey generates a key for a registry entry by (workspace, source).
func makeDocumentKey(workspaceID, sourceID string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s%s", documentPrefix, keySep, workspaceID, keySep, sourceID))
}

// makeDocumentScanPrefix generates the prefix covering all entries of a workspace.
func makeDocumentScanPrefix(workspaceID string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s", documentPrefix, keySep, workspaceID, keySep))
}

// makeWorkspaceKey generates a key for a workspace record by id.
func makeWorkspaceKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s%s", workspacePrefix, keySep, id))
}

// makePointKey generates a key for a vector point.
// Format: prefix:workspace:source:pointID
func makePointKey(workspaceID, sourceID, pointID string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s%s%s%s", pointPrefix, keySep, workspaceID, keySep, sourceID, keySep, pointID))
}

// makePointScanPrefix generates the prefix covering all points of a document.
func makePointScanPrefix(workspaceID, sourceID string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s%s%s", pointPrefix, keySep, workspaceID, keySep, sourceID, keySep))
}

// makePointWorkspacePrefix generates the prefix covering all points of a workspace.
func makePointWorkspacePrefix(workspaceID string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s", pointPrefix, keySep, workspaceID, keySep))
}

// makeProcessedKey generates a key for an idempotency mark.
func makeProcessedKey(key string) []byte {
	return []byte(fmt.Sprintf("%s%s%s", processedPrefix, keySep, key))
}
