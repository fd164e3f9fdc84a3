// Package models defines domain entities and persistence interfaces for the nostalgic recommender.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external catalog data and transient state
//   - [TrackInfo] : Track metadata and audio features as fetched from the catalog
//   - [FeatureVector] : The nine-dimensional audio descriptor plus key/mode/time signature
//   - [AnalysisProgress] : Snapshot of a running or finished library analysis
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Listener accounts with profile and birth date for formative-year lookups
//   - [Session] : Access credentials plus recommendation rate-limit state
//   - [LibraryTrack] : A saved track owned by one user, with features and cluster assignment
//   - [TasteCluster] : A taste cluster with its centroid and member count
//   - [Recommendation] : A generated candidate track with kind, score, and user feedback
//
// All persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
