// Package insights answers free-form crypto questions in chat. A triage model
// routes each question, social data grounds the answer, and a search-backed
// model writes it.
package insights

import (
	"context"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

// Category is the triage outcome for a question.
type Category string

const (
	CategoryMarket  Category = "MARKET"
	CategorySocial  Category = "SOCIAL"
	CategoryGeneral Category = "GENERAL"
)

const answerModel = "sonar"

const triageInstructions = `You route cryptocurrency questions. Reply with exactly one word:
MARKET for questions about prices, trends, or token analysis.
SOCIAL for questions about community sentiment or social activity.
GENERAL for everything else.`

const analystInstructions = `You are an advanced AI specializing in cryptocurrency trends, token analysis, and market intelligence. ` +
	`Your primary mission is to analyze user queries and provide the most recent, accurate, and insightful information available. ` +
	`Base your response on reliable sources and prioritize fresh information from the last 24 hours. ` +
	`Avoid speculation or unverified claims. Your responses must be direct, insightful, and written in a professional tone.`

// chatCompleter is the slice of the OpenAI-compatible API the service uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service wires the triage model, the answering model, and social data.
type Service struct {
	triage  chatCompleter
	analyst chatCompleter
	social  *LunarCrush
	logger  *log.Logger
}

// New builds a service. The answering client targets a Perplexity-compatible
// endpoint, so the analyst model carries live search context.
func New(openaiKey, perplexityURL, perplexityKey string, social *LunarCrush, logger *log.Logger) *Service {
	var triage chatCompleter
	if openaiKey != "" {
		triage = openai.NewClient(openaiKey)
	}
	var analyst chatCompleter
	if perplexityKey != "" {
		cfg := openai.DefaultConfig(perplexityKey)
		if perplexityURL != "" {
			cfg.BaseURL = perplexityURL
		}
		analyst = openai.NewClientWithConfig(cfg)
	}
	return &Service{triage: triage, analyst: analyst, social: social, logger: logger}
}

// NewWithClients wires explicit model clients, used by tests.
func NewWithClients(triage, analyst chatCompleter, social *LunarCrush, logger *log.Logger) *Service {
	return &Service{triage: triage, analyst: analyst, social: social, logger: logger}
}

// Classify routes a question. Triage failures fall back to GENERAL so the
// question still gets answered.
func (s *Service) Classify(ctx context.Context, question string) Category {
	if s.triage == nil {
		return CategoryGeneral
	}
	resp, err := s.triage.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: triageInstructions},
			{Role: openai.ChatMessageRoleUser, Content: "Make a decision: " + question},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		s.logger.Printf("insights: triage: %v", err)
		return CategoryGeneral
	}
	switch strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content)) {
	case string(CategoryMarket):
		return CategoryMarket
	case string(CategorySocial):
		return CategorySocial
	default:
		return CategoryGeneral
	}
}

// Answer classifies the question, gathers social context for market and
// social questions, and asks the analyst model.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	if s.analyst == nil {
		return "", boterr.New(boterr.CodeConfiguration, "insights answering is not configured")
	}

	var grounding string
	switch s.Classify(ctx, question) {
	case CategoryMarket:
		grounding = s.marketContext(ctx)
	case CategorySocial:
		grounding = s.socialContext(ctx, question)
	}

	userPrompt := "Analyze this query and provide the latest, most relevant insights: " + question
	if grounding != "" {
		userPrompt += "\nUse the additional information provided: " + grounding
	}

	resp, err := s.analyst.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       answerModel,
		Temperature: 0.2,
		TopP:        0.9,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analystInstructions},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", boterr.Wrap(boterr.CodeUnavailable, "insights answer", err)
	}
	if len(resp.Choices) == 0 {
		return "", boterr.New(boterr.CodeUnavailable, "insights answer was empty")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *Service) marketContext(ctx context.Context) string {
	if s.social == nil {
		return ""
	}
	tokens := s.social.CoreTokens(ctx)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > 10 {
		tokens = tokens[:10]
	}
	lines := make([]string, 0, len(tokens))
	for _, t := range tokens {
		lines = append(lines, t.Summary())
	}
	return strings.Join(lines, "\n")
}

func (s *Service) socialContext(ctx context.Context, question string) string {
	if s.social == nil {
		return ""
	}
	symbol := extractTicker(question)
	if symbol == "" {
		return ""
	}
	posts := s.social.TokenPosts(ctx, symbol)
	if len(posts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.Title != "" {
			lines = append(lines, "- "+p.Title)
		}
	}
	return strings.Join(lines, "\n")
}

// extractTicker pulls the first $TICKER mention out of a question.
func extractTicker(question string) string {
	for _, field := range strings.Fields(question) {
		if len(field) > 1 && strings.HasPrefix(field, "$") {
			ticker := strings.Trim(field[1:], ".,!?")
			if ticker != "" {
				return ticker
			}
		}
	}
	return ""
}
