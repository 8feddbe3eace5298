package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/vstarikov/govorun/internal/history"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, model string, p Prompt) (string, error) {
	var cfg *genai.GenerateContentConfig
	if p.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		}
	}

	contents := make([]*genai.Content, 0, len(p.History))
	for _, e := range p.History {
		if e.Role == history.RoleAssistant {
			contents = append(contents, genai.NewContentFromText(e.Text, genai.RoleModel))
			continue
		}
		contents = append(contents, genai.NewContentFromText(e.Line(), genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", errors.New("empty prompt")
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (c *GeminiClient) Transcribe(ctx context.Context, model string, audio []byte, mime, language string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(audio, mime),
		genai.NewPartFromText(fmt.Sprintf("Transcribe this audio to %s text.", language)),
	}, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (c *GeminiClient) ImageToText(ctx context.Context, model string, image []byte, mime, instruction string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, mime),
		genai.NewPartFromText(instruction),
	}, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini image: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
