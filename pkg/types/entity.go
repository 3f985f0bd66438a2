package types

import "unicode/utf8"

// Entity is a catalog document eligible for embedding
type Entity struct {
	ID      string
	Content string
}

// Length returns the content length in characters
func (e Entity) Length() int {
	return utf8.RuneCountInString(e.Content)
}

// Validate checks that the entity can be embedded
func (e Entity) Validate() error {
	if e.ID == "" {
		return ErrInvalidEntityID
	}
	if e.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// Embedding is the vector representation of an entity's content.
// It is replaced wholesale on recompute and never partially mutated.
type Embedding struct {
	ID     string
	Vector []float32
}

// Dimension returns the vector length
func (e Embedding) Dimension() int {
	return len(e.Vector)
}

// ScoredContent pairs stored content with its similarity to a query
type ScoredContent struct {
	ID         string
	Content    string
	Similarity float64 // cosine similarity in [-1, 1]
}

// Length returns the content length in characters
func (s ScoredContent) Length() int {
	return utf8.RuneCountInString(s.Content)
}
