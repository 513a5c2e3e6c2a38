package irc

import (
	"strings"
)

// Event is one classified protocol line: Keepalive, Ready, ChannelMessage or Other
type Event interface {
	event()
}

// Keepalive is a server PING. Token must be echoed back in the PONG.
type Keepalive struct {
	Token string
}

// Ready is the RPL_WELCOME (001) numeric that ends registration
type Ready struct{}

// ChannelMessage is a PRIVMSG with its sender, target and text
type ChannelMessage struct {
	Nick    string
	Channel string
	Body    string
}

// Other is any line the bot does not act on, including malformed ones
type Other struct{}

func (Keepalive) event()      {}
func (Ready) event()          {}
func (ChannelMessage) event() {}
func (Other) event()          {}

const (
	cmdPing    = "PING"
	cmdPrivmsg = "PRIVMSG"
	rplWelcome = "001"
)

// Classify maps a framed line to exactly one Event. Rules apply in order:
// keepalive, welcome numeric, channel message, everything else.
func Classify(line string) Event {
	if strings.HasPrefix(line, cmdPing) {
		token := strings.TrimSpace(line[len(cmdPing):])
		return Keepalive{Token: strings.TrimPrefix(token, ":")}
	}

	if commandToken(line) == rplWelcome {
		return Ready{}
	}

	if strings.Contains(line, cmdPrivmsg) {
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 || parts[1] != cmdPrivmsg {
			return Other{}
		}
		nick := strings.TrimPrefix(parts[0], ":")
		if i := strings.IndexByte(nick, '!'); i >= 0 {
			nick = nick[:i]
		}
		return ChannelMessage{
			Nick:    nick,
			Channel: strings.TrimSpace(parts[2]),
			Body:    strings.TrimPrefix(parts[3], ":"),
		}
	}

	return Other{}
}

// commandToken returns the command field: the second token when the line has
// a ":" prefix, the first one otherwise.
func commandToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	if strings.HasPrefix(fields[0], ":") {
		if len(fields) < 2 {
			return ""
		}
		return fields[1]
	}
	return fields[0]
}
