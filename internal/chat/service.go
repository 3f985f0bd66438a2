package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

const (
	// DefaultModel is the only model accepted unless configured otherwise
	DefaultModel = "gpt-3.5-turbo"

	// DefaultCharLimit is the context budget injected into the system prompt
	DefaultCharLimit = 4000

	// DefaultInstruction opens the system prompt
	DefaultInstruction = "Respond professionally and concisely. Only answer in the context of the following " +
		"information, provided in YAML format. Note that this information only represents the most relevant " +
		"data to the question, and does not include the entire database."

	promptSeparator = "\n---\n"
)

// Request validation errors
var (
	ErrNoMessages       = errors.New("no message was provided")
	ErrInvalidMessage   = errors.New("message is not a valid {role, content} object")
	ErrNoUserMessage    = errors.New("no user message was provided")
	ErrEmptyUserMessage = errors.New("user message has no content")
	ErrUnsupportedModel = errors.New("unsupported or invalid model")
)

// IsInvalidRequest reports whether err was caused by the caller's input
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrNoMessages) ||
		errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrNoUserMessage) ||
		errors.Is(err, ErrEmptyUserMessage) ||
		errors.Is(err, ErrUnsupportedModel) ||
		errors.Is(err, types.ErrEmptyContent)
}

// Retriever finds stored content relevant to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, charLimit int) ([]string, error)
}

// Refresher starts background embedding refreshes
type Refresher interface {
	RefreshAsync(mode indexer.Mode) bool
}

// AnswerRequest is a completion request as received from the portal.
// Each message is a JSON object string {"role": ..., "content": ...}.
type AnswerRequest struct {
	Model       string
	Messages    []string
	Temperature *float64
	MaxTokens   *int
}

// AnswerResponse holds the generated choices
type AnswerResponse struct {
	Choices      []Choice
	ContextItems int
	Usage        Usage
}

// ServiceConfig configures a Service
type ServiceConfig struct {
	AllowedModels []string // default: [DefaultModel]
	CharLimit     int      // default: DefaultCharLimit
	Instruction   string   // default: DefaultInstruction
	Logger        *zap.Logger
}

// Service answers user questions with retrieved catalog context
type Service struct {
	client    Client
	retriever Retriever
	refresher Refresher
	models    []string
	charLimit int
	prompt    string
	logger    *zap.Logger
}

// NewService creates a Service. refresher may be nil to disable refresh on request.
func NewService(client Client, retriever Retriever, refresher Refresher, cfg ServiceConfig) *Service {
	if len(cfg.AllowedModels) == 0 {
		cfg.AllowedModels = []string{DefaultModel}
	}
	if cfg.CharLimit <= 0 {
		cfg.CharLimit = DefaultCharLimit
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Service{
		client:    client,
		retriever: retriever,
		refresher: refresher,
		models:    cfg.AllowedModels,
		charLimit: cfg.CharLimit,
		prompt:    cfg.Instruction,
		logger:    cfg.Logger,
	}
}

// Answer sends the first user message, prefixed with retrieved context, to
// the completion API. An incremental embedding refresh is started in the
// background so content changed since the last run becomes searchable.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	messages, err := parseMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(messages, func(m Message) bool { return m.Role == "user" })
	if idx < 0 {
		return nil, ErrNoUserMessage
	}
	userQuery := messages[idx]
	if strings.TrimSpace(userQuery.Content) == "" {
		return nil, ErrEmptyUserMessage
	}

	if !slices.Contains(s.models, req.Model) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, req.Model)
	}

	if s.refresher != nil && !s.refresher.RefreshAsync(indexer.ModeIncremental) {
		s.logger.Debug("embedding refresh not started")
	}

	items, err := s.retriever.Retrieve(ctx, userQuery.Content, s.charLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	s.logger.Info("sending chat completion request",
		zap.String("model", req.Model),
		zap.Int("context_items", len(items)))

	resp, err := s.client.Complete(ctx, CompletionRequest{
		Model: req.Model,
		Messages: []Message{
			{Role: "system", Content: s.systemPrompt(items)},
			userQuery,
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return &AnswerResponse{
		Choices:      resp.Choices,
		ContextItems: len(items),
		Usage:        resp.Usage,
	}, nil
}

func (s *Service) systemPrompt(items []string) string {
	parts := make([]string, 0, len(items)+1)
	parts = append(parts, s.prompt)
	parts = append(parts, items...)
	return strings.Join(parts, promptSeparator)
}

func parseMessages(raw []string) ([]Message, error) {
	messages := make([]Message, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal([]byte(r), &messages[i]); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrInvalidMessage, i, err)
		}
	}
	return messages, nil
}
