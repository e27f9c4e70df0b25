// Package mock provides deterministic test doubles for the ai package
// interfaces. The default embedder behavior hashes input text into a stable
// pseudo-random unit vector, so identical text always embeds identically
// without any network dependency.
package mock
