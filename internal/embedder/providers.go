package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Default models
	DefaultOpenAIModel = "text-embedding-ada-002"
	DefaultJinaModel   = "jina-embeddings-v3"
	LocalModel         = "local-embeddings"

	// Dimensions
	OpenAIDimension = 1536
	JinaDimension   = 1024
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	DefaultTimeout = 30 * time.Second
)

// knownDimensions maps model names to their output dimension
var knownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"jina-embeddings-v3":     1024,
}

// APIError is a non-2xx answer from an embeddings endpoint
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// HTTPProvider implements Embedder against an OpenAI-compatible
// POST {baseURL}/embeddings endpoint taking {model, input}.
type HTTPProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// HTTPProviderConfig configures an HTTPProvider
type HTTPProviderConfig struct {
	Name    string // reported by Provider()
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Cache   *Cache // optional
}

// NewHTTPProvider creates an embedder backed by an embeddings HTTP API
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key for %s not set", ErrNoProviderEnabled, cfg.Name)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url for %s not set", ErrInvalidInput, cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model for %s not set", ErrInvalidInput, cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPProvider{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		dimension: knownDimensions[cfg.Model],
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache: cfg.Cache,
	}, nil
}

// NewOpenAIProvider creates an OpenAI embedder with the default base URL and model
func NewOpenAIProvider(apiKey string, cache *Cache) (*HTTPProvider, error) {
	return NewHTTPProvider(HTTPProviderConfig{
		Name:    ProviderOpenAI,
		APIKey:  apiKey,
		BaseURL: DefaultOpenAIBaseURL,
		Model:   DefaultOpenAIModel,
		Cache:   cache,
	})
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(cacheKey(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		fetched, err := p.callAPI(ctx, texts, model)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		if len(fetched) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(fetched))
		}

		for j, i := range missing {
			emb := fetched[j]
			emb.Hash = ComputeHash(req.Texts[i])
			if p.cache != nil {
				p.cache.Set(cacheKey(model, req.Texts[i]), emb)
			}
			embeddings[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(embeddingsRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Results are matched to inputs by index, not by position
	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	responseModel := apiResp.Model
	if responseModel == "" {
		responseModel = model
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     responseModel,
		}
	}

	return embeddings, nil
}

// Dimension returns the known dimension of the configured model, or 0 when
// the model is not in the table.
func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider derives deterministic vectors from a hash of the text.
// It needs no network access and is meant for development and tests.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: LocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    localVector(req.Text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      ComputeHash(req.Text),
	}

	if l.cache != nil {
		l.cache.Set(key, emb)
	}

	return emb, nil
}

// localVector expands the SHA-256 of text into LocalDimension components in
// [-1, 1] and normalizes the result. Every component is seeded by the text and
// its position, so the vector is never all zero.
func localVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	var block [sha256.Size]byte
	var seed [4]byte
	for i := 0; i < LocalDimension; i += sha256.Size / 4 {
		binary.LittleEndian.PutUint32(seed[:], uint32(i))
		block = sha256.Sum256(append(seed[:], text...))
		for j := 0; j < sha256.Size/4 && i+j < LocalDimension; j++ {
			bits := binary.LittleEndian.Uint32(block[j*4:])
			vector[i+j] = float32(bits)/float32(math.MaxUint32)*2 - 1
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
