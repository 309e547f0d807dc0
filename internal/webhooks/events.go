package webhooks

import "strings"

// AllowedEvents is the fixed event vocabulary. The dispatcher rejects
// anything outside this set; adding an event type means extending it
// here.
var AllowedEvents = []string{
	"lead.created",
	"lead.updated",
	"lead.hot",
	"workflow.completed",
}

// IsAllowedEvent reports whether the event type is in the vocabulary.
func IsAllowedEvent(eventType string) bool {
	trimmed := strings.TrimSpace(eventType)
	for _, e := range AllowedEvents {
		if e == trimmed {
			return true
		}
	}
	return false
}
