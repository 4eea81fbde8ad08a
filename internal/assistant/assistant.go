// Package assistant provides the Gemini-backed chat helper exposed on the
// dashboard. It is a thin proxy: no tool calls, no memory beyond the
// history the client sends back.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant is not configured")

const systemPrompt = `You are the in-app helper for a creator and campaign
management dashboard. Staff use it to track tasks, campaigns, and creator
rosters, and to bulk-import tasks from CSV files or a manual entry grid.
Answer questions about using the dashboard: task statuses (todo,
in_progress, blocked, done), the CSV import format (columns: title,
description, status, due_date, assigned_to_email, creator_name; dates as
YYYY-MM-DD), fixing row validation errors, and general campaign-ops
workflow. Be concise. If a question is unrelated to the dashboard, say so
briefly and point the user back to campaign operations.`

// Message is one turn of a chat exchange. Role is "user" or "model".
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Assistant wraps the Gemini client. A nil or keyless Assistant is valid
// and reports itself disabled.
type Assistant struct {
	client *genai.Client
	model  string
}

// New creates an Assistant. An empty apiKey yields a disabled instance
// rather than an error so the server can run without the feature.
func New(ctx context.Context, apiKey, model string) (*Assistant, error) {
	if apiKey == "" {
		return &Assistant{}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Assistant{client: client, model: model}, nil
}

// Enabled reports whether chat requests can be served.
func (a *Assistant) Enabled() bool {
	return a != nil && a.client != nil
}

// Chat sends the conversation history to the model and returns its reply.
// The last message must be the user's new question.
func (a *Assistant) Chat(ctx context.Context, history []Message) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	if len(history) == 0 {
		return "", errors.New("empty conversation")
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents,
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	reply := strings.TrimSpace(result.Text())
	if reply == "" {
		return "", errors.New("model returned no text")
	}
	return reply, nil
}
