package enums

import "fmt"

// ConversationRole marks which side of a two-party exchange produced an event.
type ConversationRole string

const (
	// RoleInitiator is the party awaiting a reply (the buyer in store chat).
	RoleInitiator ConversationRole = "initiator"
	// RoleResponder is the party expected to reply (the seller in store chat).
	RoleResponder ConversationRole = "responder"
)

var validConversationRoles = []ConversationRole{
	RoleInitiator,
	RoleResponder,
}

// String implements fmt.Stringer.
func (r ConversationRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ConversationRole.
func (r ConversationRole) IsValid() bool {
	for _, candidate := range validConversationRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseConversationRole converts raw input into a ConversationRole.
func ParseConversationRole(value string) (ConversationRole, error) {
	for _, candidate := range validConversationRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation role %q", value)
}
