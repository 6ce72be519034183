// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/vidlingo/internal/model"
	"google.golang.org/genai"
)

const promptTemplate = `Translate the following English sentences to %s.
Return ONLY the translated sentences, one per line, in the same order.
Do not add explanations, numbers, or any other text.

English sentences:
%s

%s translations:`

// BuildPrompt renders the batch prompt.
func BuildPrompt(target model.Language, lines []string) string {
	return fmt.Sprintf(promptTemplate, target.Name, strings.Join(lines, "\n"), target.Name)
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a client for apiKey. The client is reused for
// every call.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("translate: gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	return &GeminiGenerator{client: client, model: modelName}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, target model.Language, lines []string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.2)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(target, lines)), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini generate: empty response")
	}
	return text, nil
}

var _ Generator = (*GeminiGenerator)(nil)
