// Package event provides the in-process bus for membership-change
// notifications. Subscribers receive a message for every real master
// transition — never for no-ops — and a "deactivated" message is only
// published after the deactivation cascade has completed, so subscribers
// may safely assume the master's work has already been released.
package event

// Topics for membership-change notifications.
const (
	// TopicActivated carries messages for masters that transitioned
	// from inactive to active.
	TopicActivated = "activated"
	// TopicDeactivated carries messages for masters that transitioned
	// from active to inactive, published after the cascade completed.
	TopicDeactivated = "deactivated"
)

// Message is the payload delivered for a membership change.
type Message struct {
	MasterID int64  `json:"masterid"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}
