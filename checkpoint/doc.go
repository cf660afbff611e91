// Package checkpoint provides persistent stores for crawl snapshots: a
// local file store and a Google Cloud Storage store.
package checkpoint
