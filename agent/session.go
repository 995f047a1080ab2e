package agent

// SessionID is the caller supplied identifier of a conversation.
type SessionID string

// Session is the durable per-conversation state kept between turns.
type Session struct {
	ID       SessionID `json:"id"`
	Version  int64     `json:"version"`
	Turns    int       `json:"turns"`
	Messages []Message `json:"messages,omitempty"`
}

// CloneSession returns a deep copy safe for in-memory stores.
func CloneSession(in Session) Session {
	out := in
	out.Messages = CloneMessages(in.Messages)
	return out
}
