package main

import (
	"context"

	"github.com/propai/propai/pkg/schema"
)

// Provider SDK calls are deliberately out of scope: the builtin tools
// consume collaborator interfaces, and deployments supply real
// implementations. Until then the stubs below fail loudly instead of
// pretending to work, which surfaces as a recorded error on the tool
// call and (when retried) on every step attempt.

type unconfiguredAI struct{}

func (unconfiguredAI) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return "", schema.NewError(schema.ErrCodeExecution, "no AI provider configured")
}

type unconfiguredSearch struct{}

func (unconfiguredSearch) Search(ctx context.Context, query string) (any, error) {
	return nil, schema.NewError(schema.ErrCodeExecution, "no search provider configured")
}

type unconfiguredMailer struct{}

func (unconfiguredMailer) Send(ctx context.Context, to, subject, body string) error {
	return schema.NewError(schema.ErrCodeExecution, "no mail provider configured")
}

func (unconfiguredMailer) Read(ctx context.Context, filter string, limit int) ([]map[string]any, error) {
	return nil, schema.NewError(schema.ErrCodeExecution, "no mail provider configured")
}
