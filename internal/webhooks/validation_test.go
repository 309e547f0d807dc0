package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedEvent(t *testing.T) {
	assert.True(t, IsAllowedEvent("lead.created"))
	assert.True(t, IsAllowedEvent("  workflow.completed  "))
	assert.False(t, IsAllowedEvent("lead.deleted"))
	assert.False(t, IsAllowedEvent(""))
}

func TestValidateCreate(t *testing.T) {
	input, errs := ValidateCreate(map[string]any{
		"event_type": " lead.hot ",
		"url":        "https://example.com/hook",
		"secret":     "topsecret",
	})
	require.Empty(t, errs)
	assert.Equal(t, "lead.hot", input.EventType)
	assert.Equal(t, "https://example.com/hook", input.URL)
	assert.Equal(t, "topsecret", input.Secret)
	assert.True(t, input.Active)
}

func TestValidateCreateCollectsAllErrors(t *testing.T) {
	_, errs := ValidateCreate(map[string]any{
		"event_type": "nope",
		"url":        "ftp://example.com",
		"active":     "maybe",
	})
	require.Len(t, errs, 3)
}

func TestValidateCreateRequiredFields(t *testing.T) {
	_, errs := ValidateCreate(map[string]any{})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "event_type is required")
	assert.Contains(t, errs[1], "url is required")
}

func TestValidateCreateActiveCoercion(t *testing.T) {
	for raw, want := range map[string]bool{
		"true": true, "1": true, "yes": true, "on": true,
		"false": false, "0": false, "no": false, "off": false,
	} {
		input, errs := ValidateCreate(map[string]any{
			"event_type": "lead.created",
			"url":        "https://example.com",
			"active":     raw,
		})
		require.Empty(t, errs, "raw=%q", raw)
		assert.Equal(t, want, input.Active, "raw=%q", raw)
	}
}

func TestValidateUpdate(t *testing.T) {
	input, errs := ValidateUpdate(map[string]any{
		"url":    "http://example.com/new",
		"active": false,
	})
	require.Empty(t, errs)
	require.NotNil(t, input.URL)
	assert.Equal(t, "http://example.com/new", *input.URL)
	require.NotNil(t, input.Active)
	assert.False(t, *input.Active)
	assert.Nil(t, input.EventType)
	assert.Nil(t, input.Secret)
}

func TestValidateUpdateRequiresAField(t *testing.T) {
	_, errs := ValidateUpdate(map[string]any{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "At least one field")
}

func TestValidateUpdateEmptySecretClears(t *testing.T) {
	input, errs := ValidateUpdate(map[string]any{"secret": ""})
	require.Empty(t, errs)
	require.NotNil(t, input.Secret)
	assert.Equal(t, "", *input.Secret)
}

func TestIsValidWebhookURL(t *testing.T) {
	assert.True(t, IsValidWebhookURL("https://example.com/hook"))
	assert.True(t, IsValidWebhookURL("http://localhost:8080"))
	assert.False(t, IsValidWebhookURL("ftp://example.com"))
	assert.False(t, IsValidWebhookURL("not a url"))
	assert.False(t, IsValidWebhookURL(""))
}
