package searcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/embedder"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/similarity"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// DefaultCharLimit is the context budget used when a request does not set one
const DefaultCharLimit = 4000

// Store is the part of storage.Store the searcher reads from
type Store interface {
	LoadEmbedded(ctx context.Context) ([]storage.EmbeddedContent, error)
}

// SearchRequest contains parameters for a retrieval
type SearchRequest struct {
	Query     string
	CharLimit int // Total characters of returned content (default: DefaultCharLimit)
}

// SearchResponse contains the selected context and metadata about the run
type SearchResponse struct {
	Results    []types.ScoredContent
	Candidates int // embedded rows compared against the query
	Skipped    int // rows dropped because their vector was not comparable
	Duration   time.Duration
}

// Searcher ranks stored content against a query
type Searcher struct {
	source embedder.Computer
	store  Store
	logger *zap.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger for skipped rows
func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(source embedder.Computer, store Store, opts ...Option) *Searcher {
	s := &Searcher{
		source: source,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns the stored contents most similar to query, best first,
// whose combined length fits within charLimit characters.
func (s *Searcher) Retrieve(ctx context.Context, query string, charLimit int) ([]string, error) {
	resp, err := s.Search(ctx, SearchRequest{Query: query, CharLimit: charLimit})
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		contents[i] = r.Content
	}
	return contents, nil
}

// Search is Retrieve returning scores and run metadata.
// Errors from the embedding source are returned unwrapped so callers can
// match them with errors.Is and errors.As.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()
	s.validateRequest(&req)

	query, err := s.source.Compute(ctx, types.Entity{ID: embedder.QueryID, Content: req.Query})
	if err != nil {
		return nil, err
	}

	rows, err := s.store.LoadEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(rows) == 0 {
		return &SearchResponse{Results: []types.ScoredContent{}, Duration: time.Since(startTime)}, nil
	}
	if similarity.IsDegenerate(query.Vector) {
		return nil, fmt.Errorf("query embedding: %w", types.ErrDegenerateVector)
	}

	corpus := s.comparable(query.Vector, rows)
	ranked, err := similarity.Rank(query.Vector, corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to rank content: %w", err)
	}

	return &SearchResponse{
		Results:    similarity.TopWithinBudget(ranked, req.CharLimit),
		Candidates: len(rows),
		Skipped:    len(rows) - len(corpus),
		Duration:   time.Since(startTime),
	}, nil
}

// comparable drops rows whose vector cannot be scored against query
func (s *Searcher) comparable(query []float32, rows []storage.EmbeddedContent) []similarity.Candidate {
	corpus := make([]similarity.Candidate, 0, len(rows))
	for _, row := range rows {
		if err := similarity.Check(query, row.Vector); err != nil {
			s.logger.Warn("skipping stored embedding",
				zap.String("entity_id", row.ID),
				zap.Int("dimension", len(row.Vector)),
				zap.Error(err))
			continue
		}
		corpus = append(corpus, similarity.Candidate{ID: row.ID, Content: row.Content, Vector: row.Vector})
	}
	return corpus
}

// validateRequest fills defaults
func (s *Searcher) validateRequest(req *SearchRequest) {
	if req.CharLimit <= 0 {
		req.CharLimit = DefaultCharLimit
	}
}
