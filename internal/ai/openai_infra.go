package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vstarikov/govorun/internal/history"
)

type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	return &OpenAIClient{client: openai.NewClient(apiKey)}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, model string, p Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(p.History)+1)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: "system", Content: p.System})
	}
	for _, e := range p.History {
		if e.Role == history.RoleAssistant {
			messages = append(messages, openai.ChatCompletionMessage{Role: "assistant", Content: e.Text})
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: "user", Content: e.Line()})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai generate: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe гонит аудио через Whisper. mime не нужен: формат Whisper
// определяет по расширению имени файла.
func (c *OpenAIClient) Transcribe(ctx context.Context, model string, audio []byte, _ string, language string) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(audio),
		FilePath: "voice.ogg",
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *OpenAIClient) ImageToText(ctx context.Context, model string, image []byte, mime, instruction string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role: "user",
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: instruction},
				{Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai image: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
