package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the event relay.
//
//	sidekick/system/status       retained online/offline status
//	sidekick/events/{kind}       one message per session event
const (
	topicPrefix = "sidekick"

	// SystemStatusTopic carries the retained online/offline status.
	SystemStatusTopic = topicPrefix + "/system/status"
)

// EventTopic returns the topic for a session event of the given kind.
// The kind is sanitised so it can never introduce topic levels.
func EventTopic(kind string) string {
	kind = strings.ReplaceAll(kind, "/", "_")
	kind = strings.ReplaceAll(kind, "+", "_")
	kind = strings.ReplaceAll(kind, "#", "_")
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("%s/events/%s", topicPrefix, kind)
}
