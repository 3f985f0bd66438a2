// Package types provides shared type definitions for the portal chat backend.
//
// This package defines the domain types passed between the embedding, storage,
// indexing and retrieval components, together with the error taxonomy they share.
//
// # Core Types
//
// Entity is a unit of catalog content eligible for embedding. It is produced
// outside this module and treated as read-only:
//
//	entity := types.Entity{
//	    ID:      "component:default/payments-api",
//	    Content: "apiVersion: backstage.io/v1alpha1\nkind: Component\n...",
//	}
//
// Embedding is the vector computed from an entity's content. It carries the
// entity ID so stores can update the matching row:
//
//	embedding := types.Embedding{ID: entity.ID, Vector: vector}
//
// ScoredContent is the per-query result of comparing a stored embedding with a
// query embedding. It is never persisted.
//
// # Errors
//
// Every failure class has a sentinel error for errors.Is checks and, where
// detail is useful, a typed error for errors.As:
//
//	var tooLong *types.ContentTooLongError
//	if errors.As(err, &tooLong) {
//	    log.Printf("entity %s has %d characters", tooLong.EntityID, tooLong.Length)
//	}
//
//	if errors.Is(err, types.ErrRemoteCompute) {
//	    // transient: safe to retry later
//	}
package types
