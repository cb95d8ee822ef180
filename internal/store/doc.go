// Package store provides SQLite-backed durable storage for form documents.
//
// The store implements three interfaces used by the document service:
//   - blob.Store: one row per document in blobs, overwritten atomically
//   - blob.VersionPurger: optional history rows in blob_versions
//   - lock.Backend: one row per held lock in locks
//
// # Locking
//
// Lock rows rely on PRIMARY KEY(namespace, key). InsertUnique uses
// INSERT ... ON CONFLICT DO NOTHING and reports whether a row was inserted,
// so the database arbitrates between contending processes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as Unix nanoseconds so range comparisons in SQL
// stay numeric.
package store
