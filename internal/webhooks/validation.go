package webhooks

import (
	"fmt"
	"net/url"
	"strings"
)

// CreateInput is the normalized result of validating a subscription
// create request.
type CreateInput struct {
	EventType string
	URL       string
	Secret    string
	Active    bool
}

// UpdateInput carries only the fields present in an update request.
// A nil field means "leave unchanged"; a present Secret pointing at an
// empty string clears the stored secret.
type UpdateInput struct {
	EventType *string
	URL       *string
	Secret    *string
	Active    *bool
}

// IsValidWebhookURL accepts absolute http/https URLs only.
func IsValidWebhookURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func normalizeActive(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}

func trimmedString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// ValidateCreate normalizes and validates a create request body.
// All problems are reported at once.
func ValidateCreate(body map[string]any) (CreateInput, []string) {
	var errs []string
	input := CreateInput{
		EventType: trimmedString(body["event_type"]),
		URL:       trimmedString(body["url"]),
		Secret:    trimmedString(body["secret"]),
		Active:    true,
	}

	if input.EventType == "" {
		errs = append(errs, "event_type is required.")
	} else if !IsAllowedEvent(input.EventType) {
		errs = append(errs, fmt.Sprintf("event_type must be one of: %s", strings.Join(AllowedEvents, ", ")))
	}

	if input.URL == "" {
		errs = append(errs, "url is required.")
	} else if !IsValidWebhookURL(input.URL) {
		errs = append(errs, "url must be a valid http/https URL.")
	}

	if raw, ok := body["active"]; ok && raw != nil {
		active, valid := normalizeActive(raw)
		if !valid {
			errs = append(errs, "active must be a boolean.")
		} else {
			input.Active = active
		}
	}

	return input, errs
}

// ValidateUpdate normalizes and validates a partial update body.
func ValidateUpdate(body map[string]any) (UpdateInput, []string) {
	var errs []string
	var input UpdateInput

	if raw, ok := body["event_type"]; ok {
		eventType := trimmedString(raw)
		if eventType == "" {
			errs = append(errs, "event_type cannot be empty.")
		} else if !IsAllowedEvent(eventType) {
			errs = append(errs, fmt.Sprintf("event_type must be one of: %s", strings.Join(AllowedEvents, ", ")))
		}
		input.EventType = &eventType
	}

	if raw, ok := body["url"]; ok {
		u := trimmedString(raw)
		if u == "" {
			errs = append(errs, "url cannot be empty.")
		} else if !IsValidWebhookURL(u) {
			errs = append(errs, "url must be a valid http/https URL.")
		}
		input.URL = &u
	}

	if raw, ok := body["secret"]; ok {
		secret := trimmedString(raw)
		input.Secret = &secret
	}

	if raw, ok := body["active"]; ok {
		active, valid := normalizeActive(raw)
		if !valid {
			errs = append(errs, "active must be a boolean.")
		} else {
			input.Active = &active
		}
	}

	if input.EventType == nil && input.URL == nil && input.Secret == nil && input.Active == nil {
		errs = append(errs, "At least one field is required to update.")
	}

	return input, errs
}
