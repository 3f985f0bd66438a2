// Package similarity ranks stored content against a query vector.
//
// Cosine computes the cosine similarity of two equal-length vectors and
// rejects unequal dimensions and zero-norm vectors instead of returning a
// misleading score. Rank orders a corpus by similarity with a stable sort, and
// SelectWithinBudget trims a ranked list to a character budget:
//
//	ranked, err := similarity.Rank(queryVector, candidates)
//	if err != nil {
//	    return err
//	}
//	contextItems := similarity.SelectWithinBudget(ranked, 4000)
//
// Everything in this package is pure and safe for concurrent use.
package similarity
