// Package searcher retrieves the stored content most relevant to a query.
//
// A retrieval embeds the query, loads every stored embedding, ranks the rows by
// cosine similarity and keeps the best ones until the character budget is
// spent:
//
//	s := searcher.NewSearcher(source, store, searcher.WithLogger(logger))
//	snippets, err := s.Retrieve(ctx, "How do I register a component?", 4000)
//
// Rows whose vector has a different dimension than the query, or a zero norm,
// are logged and left out of the ranking. A zero query vector is an error.
// The budget counts characters, and the first entry that does not fit ends the
// selection even if a shorter one further down would.
package searcher
