package errors

import (
	"github.com/yourusername/kukisti/internal/output"
)

// Handler logs errors that are absorbed inside the bot. None of them reach
// the channel; the caller only decides whether a reply is produced.
type Handler struct {
	output *output.Output
}

// NewHandler creates a new error handler
func NewHandler(out *output.Output) *Handler {
	return &Handler{
		output: out,
	}
}

// Invocation identifies the command call an error belongs to
type Invocation struct {
	Command   string // registry entry name
	Text      string // alias and arguments as typed
	Nick      string
	Channel   string
	RequestID string
}

// LogError logs an error with a short message to the terminal and the error
// log file
func (h *Handler) LogError(err error, message string) {
	if h == nil || err == nil {
		return
	}
	entry := entryFor(err)
	entry.Message = message
	h.output.LogError(entry)
}

// LogCommandError logs a failure of a command invocation
func (h *Handler) LogCommandError(err error, inv Invocation) {
	if h == nil || err == nil {
		return
	}
	entry := entryFor(err)
	entry.Message = inv.Text
	entry.Command = inv.Command
	entry.Nick = inv.Nick
	entry.Channel = inv.Channel
	entry.RequestID = inv.RequestID
	h.output.LogError(entry)
}

// entryFor copies the typed fields of a BotError. Other errors are logged
// as handler failures with the error as cause.
func entryFor(err error) output.ErrorEntry {
	botErr, ok := AsBotError(err)
	if !ok {
		return output.ErrorEntry{Kind: string(ErrorTypeHandlerFailure), Cause: err}
	}
	return output.ErrorEntry{
		Kind:   string(botErr.Type),
		Op:     botErr.Op,
		Detail: botErr.Detail,
		Cause:  botErr.Err,
	}
}
