package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// Candidate is a stored entry considered for ranking against a query
type Candidate struct {
	ID      string
	Content string
	Vector  []float32
}

// Cosine computes dot(a,b) / (|a| * |b|).
// Accumulation happens in float64 so long float32 vectors do not lose precision.
func Cosine(a, b []float32) (float64, error) {
	if err := Check(a, b); err != nil {
		return 0, err
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push identical vectors marginally past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Check reports whether a and b can be compared with Cosine
func Check(a, b []float32) error {
	if len(a) != len(b) {
		return &types.DimensionMismatchError{Left: len(a), Right: len(b)}
	}
	if isZero(a) || isZero(b) {
		return types.ErrDegenerateVector
	}
	return nil
}

// IsDegenerate reports whether v is empty or has zero norm
func IsDegenerate(v []float32) bool {
	return isZero(v)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Rank scores every candidate against query and orders them by similarity,
// highest first. Candidates with equal scores keep their input order.
func Rank(query []float32, corpus []Candidate) ([]types.ScoredContent, error) {
	scored := make([]types.ScoredContent, 0, len(corpus))
	for i, c := range corpus {
		sim, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %d (%s): %w", i, c.ID, err)
		}
		scored = append(scored, types.ScoredContent{
			ID:         c.ID,
			Content:    c.Content,
			Similarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored, nil
}

// SelectWithinBudget walks ranked from the top and returns the contents whose
// cumulative character count stays within charLimit. The first entry that
// would overflow the budget ends the walk and is not included.
func SelectWithinBudget(ranked []types.ScoredContent, charLimit int) []string {
	selected := make([]string, 0, len(ranked))
	total := 0
	for _, sc := range ranked {
		total += sc.Length()
		if total > charLimit {
			break
		}
		selected = append(selected, sc.Content)
	}
	return selected
}

// TopWithinBudget is SelectWithinBudget returning the scored entries instead
// of bare content.
func TopWithinBudget(ranked []types.ScoredContent, charLimit int) []types.ScoredContent {
	n := len(SelectWithinBudget(ranked, charLimit))
	out := make([]types.ScoredContent, n)
	copy(out, ranked[:n])
	return out
}
