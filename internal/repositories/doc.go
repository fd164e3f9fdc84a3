// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
//
// Key Implementations:
//   - [UserRepository] : User account persistence with catalog-profile lookups
//   - [SessionRepository] : Catalog credentials plus recommendation rate-limit state
//   - [TrackRepository] : Saved library tracks with audio features and cluster membership
//   - [ClusterRepository] : Taste clusters, recreated wholesale per analysis run
//   - [RecommendationRepository] : Append-only recommendation history with one-shot feedback
//   - [ProgressRepository] : Durable analysis progress snapshots keyed by user
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, track #1500) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
