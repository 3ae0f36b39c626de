package types

import "strings"

const (
	// EventStar matches every event, so the extension is activated by the first event the host fires after it was
	// registered, usually EventStartupFinished. Registering alone activates nothing.
	EventStar = "*"

	// EventStartupFinished is fired by the host once all extensions have been loaded.
	EventStartupFinished = "onStartupFinished"

	// EventCommandPrefix prefixes the id of a command about to be executed.
	EventCommandPrefix = "onCommand:"
)

type Event struct {
	Id     string `json:"id" yaml:"id"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// OnCommand builds the activation event fired right before the command id runs.
func OnCommand(id string) Event {
	return Event{Id: EventCommandPrefix + id}
}

// Matches reports whether the activation event declared by an extension is satisfied by e.
func (e Event) Matches(activationEvent string) bool {
	activationEvent = strings.TrimSpace(activationEvent)
	if activationEvent == EventStar {
		return true
	}
	return activationEvent == e.Id
}
