package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds the connection to the identity behind a credential.
	CommandJoin CommandKind = iota
	// CommandSendMessage submits a broadcast or private chat message.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind       CommandKind
	Credential string
	Body       string
	// RecipientID is set for private messages.
	RecipientID *int64
}
