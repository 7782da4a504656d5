package stream

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Stream message envelope types.
const (
	TypeLog           = "log"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
)

// defaultLogStream labels log messages that omit a stream name.
const defaultLogStream = "log"

// Message is one parsed envelope from the event stream.
//
// Type is empty when the payload is not valid JSON or carries an
// unrecognised discriminator; Raw always holds the original text so
// unrecognised messages can be passed through verbatim.
type Message struct {
	Type   string
	Stream string
	Text   string
	TaskID string
	Error  string
	Raw    string
}

// parseMessage parses a raw stream payload into a Message. It never fails:
// malformed input yields a Message with an empty Type and the raw text intact.
//
// gjson is used for the discriminator so a single malformed field cannot
// reject an otherwise readable envelope.
func parseMessage(data []byte) Message {
	msg := Message{Raw: string(data)}

	if !gjson.ValidBytes(data) {
		return msg
	}

	switch gjson.GetBytes(data, "type").String() {
	case TypeLog:
		msg.Type = TypeLog
		msg.Stream = gjson.GetBytes(data, "stream").String()
		msg.Text = gjson.GetBytes(data, "message").String()
	case TypeTaskCompleted:
		msg.Type = TypeTaskCompleted
		msg.TaskID = gjson.GetBytes(data, "task_id").String()
	case TypeTaskFailed:
		msg.Type = TypeTaskFailed
		msg.TaskID = gjson.GetBytes(data, "task_id").String()
		msg.Error = gjson.GetBytes(data, "error").String()
	}

	return msg
}

// Line formats the message as a single developer-facing output line.
//
// Log messages render as "[STREAM] message" with the stream name upper-cased
// (defaulting to LOG when absent). Task outcomes render as one-line summaries.
// Anything unrecognised passes through verbatim.
func (m Message) Line() string {
	switch m.Type {
	case TypeLog:
		streamName := m.Stream
		if streamName == "" {
			streamName = defaultLogStream
		}
		return fmt.Sprintf("[%s] %s", strings.ToUpper(streamName), m.Text)
	case TypeTaskCompleted:
		return fmt.Sprintf("[TASK] %s completed", m.TaskID)
	case TypeTaskFailed:
		return fmt.Sprintf("[TASK] %s failed: %s", m.TaskID, m.Error)
	default:
		return m.Raw
	}
}
