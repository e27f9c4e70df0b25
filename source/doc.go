// Package source defines the connector boundary through which raw document
// content enters the ingestion pipeline. A connector yields content plus a
// stable per-document identifier and a content fingerprint; everything
// downstream keys on those.
package source
