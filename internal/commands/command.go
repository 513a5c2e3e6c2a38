package commands

import (
	"context"

	"github.com/yourusername/kukisti/internal/database"
)

// Handler runs the business logic of one command. An empty result means no
// reply. Handlers must not touch session or registry state.
type Handler interface {
	Execute(ctx context.Context, args string) (string, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, args string) (string, error)

// Execute calls f(ctx, args)
func (f HandlerFunc) Execute(ctx context.Context, args string) (string, error) {
	return f(ctx, args)
}

// Entry is the static configuration of one command
type Entry struct {
	// Name identifies the command in logs and metrics
	Name string

	// Aliases are the full tokens that trigger the command, marker included ("!w")
	Aliases []string

	// AllowArgs false means any trailing text makes the invocation a no-op
	AllowArgs bool

	// Help is a one-line description for !help
	Help string

	Handler Handler
}

// Invocation is one parsed command line
type Invocation struct {
	// Token is the lower-cased leading word
	Token string

	// Args is everything after the first space, possibly empty
	Args string

	// Entry is nil when no alias matched
	Entry *Entry
}

// Sender delivers a reply to a channel
type Sender interface {
	SendMessage(ctx context.Context, channel, text string) error
}

// LinkHandler receives channel messages that are not commands
type LinkHandler interface {
	DetectAndHandle(ctx context.Context, nick, channel, body string)
}

// Stopper ends the bot in response to the admin quit phrase
type Stopper interface {
	Stop()
}

// UsageRecorder stores command metrics
type UsageRecorder interface {
	RecordCommandUsage(ctx context.Context, u database.CommandUsage) error
}
