// Package watch implements the long-lived streaming watch protocol:
// it opens a chunked HTTP connection against a resource collection,
// decodes newline-delimited JSON change events, and reconnects
// transparently when the server drops the stream.
package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// EventType is the kind of change a watch event reports. It is a
// closed set; lines carrying any other kind are dropped before they
// reach consumers.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
	Error    EventType = "ERROR"
)

// Event is a single decoded change from the watch stream. Object
// carries the raw resource document; callers pull fields out of it
// with the unstructured accessors.
type Event struct {
	Type   EventType
	Object *unstructured.Unstructured
}

// Watcher provides a channel of events and a way to stop the
// underlying stream. The channel closes only when the watch is
// stopped or its context is cancelled; server-side disconnects are
// absorbed by reconnection.
type Watcher interface {
	// ResultChan returns the channel events are delivered on.
	ResultChan() <-chan Event
	// Stop terminates the watch and closes the result channel.
	Stop()
}

// Identity names what is being watched. An empty Name watches every
// resource of the collection in the namespace.
type Identity struct {
	Namespace string
	Resource  string
	Name      string
}

// Path returns the watch endpoint path for this identity, relative
// to the API root.
func (id Identity) Path() string {
	p := fmt.Sprintf("watch/namespaces/%s/%s/", id.Namespace, id.Resource)
	if id.Name != "" {
		p += id.Name + "/"
	}
	return p
}

type rawEvent struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

// parseLine decodes one line of the stream into an Event. The second
// return value reports whether the line was usable; malformed JSON,
// missing keys, and unrecognized event kinds are all dropped.
func parseLine(line string) (Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, false
	}
	if raw.Type == "" || raw.Object == nil {
		return Event{}, false
	}

	var typ EventType
	switch EventType(strings.ToUpper(raw.Type)) {
	case Added:
		typ = Added
	case Modified:
		typ = Modified
	case Deleted:
		typ = Deleted
	case Error:
		typ = Error
	default:
		return Event{}, false
	}

	obj := map[string]any{}
	if err := json.Unmarshal(raw.Object, &obj); err != nil {
		return Event{}, false
	}
	return Event{Type: typ, Object: &unstructured.Unstructured{Object: obj}}, true
}
