// Package formula runs the request pipeline shared by every handler:
// build prompt, call the model, decode, parse tolerantly, normalise.
package formula

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"formula-gateway/internal/config"
	"formula-gateway/internal/invoker"
	"formula-gateway/internal/models"
	"formula-gateway/internal/parser"
	"formula-gateway/internal/prompt"
	"formula-gateway/internal/provider"
	"formula-gateway/internal/workbook"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("query is required")

var noAnswerText = map[models.Language]string{
	models.LanguageRU: "Не удалось получить ответ от модели. Пожалуйста, уточните запрос или попробуйте ещё раз.",
	models.LanguageEN: "I could not get an answer from the model. Please clarify your request or try again.",
}

// endpoint binds an invoker to the model settings of one handler.
type endpoint struct {
	invoker  *invoker.Invoker
	model    string
	sampling models.Sampling
}

func newEndpoint(p provider.Provider, cfg config.EndpointConfig) endpoint {
	return endpoint{
		invoker: invoker.New(p, invoker.PolicyFrom(cfg)),
		model:   cfg.Model,
		sampling: models.Sampling{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
			ReasoningEffort: cfg.ReasoningEffort,
		},
	}
}

// Service implements the generator, assistant and workbook flows.
type Service struct {
	builder     *prompt.Builder
	generator   endpoint
	assistant   endpoint
	credentials Credentials
	previewRows int
	previewCols int
}

// NewService wires the pipeline from configuration.
func NewService(cfg config.Config, generator, assistant provider.Provider, creds Credentials) (*Service, error) {
	if generator == nil || assistant == nil {
		return nil, errors.New("providers must not be nil")
	}
	if creds == nil {
		return nil, errors.New("credentials must not be nil")
	}

	return &Service{
		builder:     prompt.NewBuilder(cfg.Workbook.PreviewRows, cfg.Workbook.PreviewCols),
		generator:   newEndpoint(generator, cfg.Generator),
		assistant:   newEndpoint(assistant, cfg.Assistant),
		credentials: creds,
		previewRows: cfg.Workbook.PreviewRows,
		previewCols: cfg.Workbook.PreviewCols,
	}, nil
}

// Generate converts a single query into a formula. Upstream failures,
// including exhausted retries, are returned to the caller.
func (s *Service) Generate(ctx context.Context, q models.Query) (models.ResultPayload, error) {
	return s.run(ctx, s.generator, prompt.ModeOneShot, q, nil)
}

// Converse answers one turn of a conversation. When every attempt comes back
// empty it returns a clarification request instead of an error.
func (s *Service) Converse(ctx context.Context, q models.Query, history []models.ConversationTurn) (models.ResultPayload, error) {
	payload, err := s.run(ctx, s.assistant, prompt.ModeConversational, q, history)
	if errors.Is(err, invoker.ErrNoAnswer) {
		slog.Warn("assistant exhausted retries, returning clarification", "err", err)
		return NoAnswer(q.Language), nil
	}
	return payload, err
}

// ProcessResult is the outcome of applying a query to a workbook.
type ProcessResult struct {
	File     []byte
	Payload  models.ResultPayload
	Rejected []workbook.Rejection
}

// Process previews the workbook, asks the model for cell updates and applies
// the valid ones.
func (s *Service) Process(ctx context.Context, file []byte, q models.Query) (ProcessResult, error) {
	if err := validateQuery(q); err != nil {
		return ProcessResult{}, err
	}

	preview, err := workbook.Preview(file, s.previewRows, s.previewCols)
	if err != nil {
		return ProcessResult{}, err
	}
	q.Preview = preview
	q.HasSpreadsheet = true

	payload, err := s.run(ctx, s.generator, prompt.ModeWorkbook, q, nil)
	if err != nil {
		return ProcessResult{}, err
	}

	out, rejected, err := workbook.Apply(file, payload.CellUpdates)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("apply cell updates: %w", err)
	}
	if len(rejected) > 0 {
		slog.Warn("skipped invalid cell updates", "count", len(rejected))
	}

	return ProcessResult{File: out, Payload: payload, Rejected: rejected}, nil
}

func (s *Service) run(ctx context.Context, ep endpoint, mode prompt.Mode, q models.Query, history []models.ConversationTurn) (models.ResultPayload, error) {
	if err := validateQuery(q); err != nil {
		return models.ResultPayload{}, err
	}

	apiKey, err := s.credentials.APIKey()
	if err != nil {
		return models.ResultPayload{}, err
	}

	system, turns := s.builder.Build(mode, q, history)
	req := models.ModelRequest{
		SystemPrompt: system,
		Turns:        turns,
		Model:        ep.model,
		Sampling:     ep.sampling,
	}

	text, err := ep.invoker.Invoke(ctx, apiKey, req)
	if err != nil {
		return models.ResultPayload{}, err
	}

	result := parser.Parse(mode, q.Language, text)
	slog.Debug("model output parsed", "mode", mode, "kind", result.Kind.String())

	payload := result.Payload
	if payload.Formula == nil && strings.TrimSpace(payload.Explanation) == "" {
		payload.Explanation = noAnswerText[models.ParseLanguage(string(q.Language))]
	}
	return payload, nil
}

// NoAnswer is the clarification payload returned after exhausted retries.
func NoAnswer(lang models.Language) models.ResultPayload {
	return models.ResultPayload{
		Explanation: noAnswerText[models.ParseLanguage(string(lang))],
		Functions:   []models.FunctionInfo{},
	}
}

func validateQuery(q models.Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuery
	}
	return nil
}
