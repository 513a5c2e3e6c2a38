package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/kukisti/internal/config"
	"github.com/yourusername/kukisti/internal/database"
	"github.com/yourusername/kukisti/internal/errors"
	"github.com/yourusername/kukisti/internal/output"
	"github.com/yourusername/kukisti/internal/ratelimit"
)

// QuitReply is sent to the channel before the admin quit phrase stops the bot
const QuitReply = "I will quit, bye."

// Dispatcher routes channel messages: command lines go to the registry,
// everything else to the link handler. All work runs on the pool.
type Dispatcher struct {
	registry       *Registry
	pool           *Pool
	logger         output.Logger
	errHandler     *errors.Handler
	cooldown       *ratelimit.Cooldown
	commandPrefix  string
	handlerTimeout time.Duration
	adminNick      string
	nickname       string

	sender  Sender
	links   LinkHandler
	stopper Stopper
	usage   UsageRecorder
}

// NewDispatcher creates a dispatcher. The sender, link handler, stopper and
// usage recorder are optional and set with their setters before the
// session starts.
func NewDispatcher(cfg *config.Config, registry *Registry, pool *Pool, logger output.Logger, errHandler *errors.Handler) *Dispatcher {
	return &Dispatcher{
		registry:       registry,
		pool:           pool,
		logger:         logger,
		errHandler:     errHandler,
		cooldown:       ratelimit.NewCooldown(cfg.Limits.GetCommandCooldownDuration()),
		commandPrefix:  cfg.Bot.CommandPrefix,
		handlerTimeout: cfg.Limits.GetHandlerTimeoutDuration(),
		adminNick:      cfg.Bot.AdminNick,
		nickname:       cfg.Server.Nickname,
	}
}

// SetSender sets where replies go
func (d *Dispatcher) SetSender(s Sender) {
	d.sender = s
}

// SetLinkHandler sets the collaborator for non-command messages
func (d *Dispatcher) SetLinkHandler(l LinkHandler) {
	d.links = l
}

// SetStopper sets what the admin quit phrase stops
func (d *Dispatcher) SetStopper(s Stopper) {
	d.stopper = s
}

// SetUsageRecorder enables command metrics
func (d *Dispatcher) SetUsageRecorder(u UsageRecorder) {
	d.usage = u
}

// Cooldown returns the per-nick command cooldown tracker
func (d *Dispatcher) Cooldown() *ratelimit.Cooldown {
	return d.cooldown
}

// IsCommand checks if a message starts with the command prefix
func (d *Dispatcher) IsCommand(body string) bool {
	return strings.HasPrefix(body, d.commandPrefix)
}

// HandleMessage is called by the session's read loop for every message in a
// joined channel. It only queues work and never blocks.
func (d *Dispatcher) HandleMessage(nick, channel, body string) {
	var task Task
	switch {
	case d.isQuitPhrase(nick, body):
		task = func(ctx context.Context) { d.quit(ctx, nick, channel) }
	case d.IsCommand(body):
		task = func(ctx context.Context) {
			reply, ok := d.Dispatch(ctx, nick, channel, body)
			if ok {
				d.reply(ctx, channel, reply)
			}
		}
	case d.links != nil:
		task = func(ctx context.Context) { d.links.DetectAndHandle(ctx, nick, channel, body) }
	default:
		return
	}

	if err := d.pool.Submit(channel, task); err != nil {
		d.logger.Warning("Dropping message from %s in %s: %v", nick, channel, err)
	}
}

// Dispatch resolves body to a command and runs it, returning the reply if
// there is one. Unknown commands, argument policy violations, cooldowns and
// handler failures all yield no reply.
func (d *Dispatcher) Dispatch(ctx context.Context, nick, channel, body string) (string, bool) {
	inv := d.registry.Parse(body)
	if inv.Entry == nil {
		d.logger.Info("%v (from %s in %s)", errors.NewUnknownCommandError(inv.Token), nick, channel)
		return "", false
	}
	entry := inv.Entry

	if !entry.AllowArgs && inv.Args != "" {
		d.logger.Debug("%v", errors.NewArgumentPolicyError(entry.Name, inv.Args))
		return "", false
	}

	if ok, remaining := d.cooldown.Acquire(nick, entry.Name); !ok {
		d.logger.Debug("%s is on cooldown for %s (%.1fs left)", nick, entry.Name, remaining.Seconds())
		return "", false
	}

	requestID := uuid.NewString()
	start := time.Now()
	reply, err := d.execute(ctx, entry, inv.Args)
	elapsed := time.Since(start)

	d.record(ctx, database.CommandUsage{
		Command:   entry.Name,
		Nick:      nick,
		Channel:   channel,
		Success:   err == nil,
		Duration:  elapsed,
		RequestID: requestID,
	})

	if err != nil {
		text := inv.Token
		if inv.Args != "" {
			text += " " + inv.Args
		}
		d.errHandler.LogCommandError(errors.NewHandlerError(entry.Name, err), errors.Invocation{
			Command:   entry.Name,
			Text:      text,
			Nick:      nick,
			Channel:   channel,
			RequestID: requestID,
		})
		return "", false
	}

	d.logger.Debug("%s by %s took %v [%s]", entry.Name, nick, elapsed, requestID)
	if reply == "" {
		return "", false
	}
	return reply, true
}

// execute runs the handler with a timeout. A panic becomes an error.
func (d *Dispatcher) execute(ctx context.Context, entry *Entry, args string) (reply string, err error) {
	if d.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.handlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return entry.Handler.Execute(ctx, args)
}

func (d *Dispatcher) reply(ctx context.Context, channel, text string) {
	if d.sender == nil {
		return
	}
	// Cancelled after the shutdown grace period: drop the reply
	if ctx.Err() != nil {
		return
	}
	if err := d.sender.SendMessage(ctx, channel, text); err != nil {
		d.logger.Warning("Failed to send reply to %s: %v", channel, err)
	}
}

func (d *Dispatcher) record(ctx context.Context, u database.CommandUsage) {
	if d.usage == nil {
		return
	}
	if err := d.usage.RecordCommandUsage(context.WithoutCancel(ctx), u); err != nil {
		d.logger.Warning("Failed to record command usage: %v", err)
	}
}

// isQuitPhrase matches "bye <bot nick>" from the configured admin. The nick
// compare ignores case; the phrase is exact apart from trailing whitespace.
func (d *Dispatcher) isQuitPhrase(nick, body string) bool {
	if d.adminNick == "" || d.stopper == nil || !strings.EqualFold(nick, d.adminNick) {
		return false
	}
	return strings.TrimRight(body, " \t") == "bye "+d.nickname
}

func (d *Dispatcher) quit(ctx context.Context, nick, channel string) {
	d.logger.Warning("Quit requested by %s in %s", nick, channel)
	d.reply(ctx, channel, QuitReply)
	d.stopper.Stop()
}
