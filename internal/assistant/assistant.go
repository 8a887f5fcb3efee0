// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package assistant answers natural language questions about the
// cluster through an OpenAI-compatible chat completion endpoint.
// The assistant is optional: when no API key is configured the rest
// of KubePulse works normally and this package reports
// ErrNotConfigured.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/logging"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("assistant not configured")

const systemPrompt = "You are KubePulse, an assistant that helps users debug " +
	"and understand their Kubernetes cluster. You will receive a natural " +
	"language question and (optionally) UI context from the dashboard as " +
	"JSON. Use the context JSON to stay focused on the pod, namespace or " +
	"resource the user is currently looking at. Explain things clearly and " +
	"safely. If you are not sure, say so and suggest kubectl or logs the " +
	"user can check."

// completionClient is the slice of the OpenAI client the assistant uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant produces replies for dashboard questions.
type Assistant struct {
	client completionClient
	model  string
}

// New creates an Assistant from configuration. A missing API key yields
// an unconfigured Assistant rather than an error.
func New(cfg config.AssistantConfig) *Assistant {
	a := &Assistant{model: cfg.Model}
	if cfg.APIKey != "" {
		a.client = openai.NewClient(cfg.APIKey)
	}
	return a
}

// newWithClient is used by tests to inject a fake completion backend.
func newWithClient(client completionClient, model string) *Assistant {
	return &Assistant{client: client, model: model}
}

// Configured reports whether an API key was provided.
func (a *Assistant) Configured() bool {
	return a.client != nil
}

// Chat sends the user message plus optional UI context and returns the
// assistant's reply.
func (a *Assistant) Chat(ctx context.Context, message string, uiContext map[string]any) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	contextString := "null"
	if uiContext != nil {
		encoded, err := json.MarshalIndent(uiContext, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode ui context: %w", err)
		}
		contextString = string(encoded)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("User message:\n%s\n\nUI context (JSON):\n%s",
					message, contextString),
			},
		},
	})
	if err != nil {
		logging.Err(err).Msg("assistant completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "Sorry, I could not generate a response.", nil
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "Sorry, I could not generate a response.", nil
	}
	return reply, nil
}
