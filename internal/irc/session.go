package irc

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/yourusername/kukisti/internal/config"
	"github.com/yourusername/kukisti/internal/errors"
	"github.com/yourusername/kukisti/internal/output"
	"github.com/yourusername/kukisti/internal/ratelimit"
	"gopkg.in/irc.v4"
)

// DialFunc opens the transport to the server
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// MessageHandler receives channel messages for joined channels.
// It is called from the read loop and must not block.
type MessageHandler interface {
	HandleMessage(nick, channel, body string)
}

// Session is one connection to the server. It is single-use: Run may be
// called once, after which a new Session is needed to reconnect.
type Session struct {
	logger  output.Logger
	handler MessageHandler
	gate    *ratelimit.FloodGate
	dial    DialFunc

	address     string
	tls         bool
	nickname    string
	username    string
	realname    string
	channels    []string
	quitMessage string
	maxMsgLen   int

	joinDelay      time.Duration
	connectTimeout time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration

	state    stateFlag
	started  atomic.Bool
	stopping atomic.Bool

	connMu  sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex

	joinedMu sync.RWMutex
	joined   map[string]bool

	readyOnce    sync.Once
	joinWG       sync.WaitGroup
	joinCancel   context.CancelFunc
	shutdownOnce sync.Once
	closeOnce    sync.Once
	reachedReady atomic.Bool
}

// NewSession creates a session from the server, bot and limits configuration.
// gate is shared with other sessions so reconnects do not reset flood credit.
func NewSession(cfg *config.Config, logger output.Logger, handler MessageHandler, gate *ratelimit.FloodGate) *Session {
	if gate == nil {
		gate = ratelimit.NewFloodGate(cfg.Limits.GetSendIntervalDuration(), cfg.Limits.SendBurst)
	}
	channels := make([]string, len(cfg.Bot.Channels))
	copy(channels, cfg.Bot.Channels)

	maxLen := cfg.Server.MaxMessageLength
	if maxLen <= 0 {
		maxLen = 400
	}

	return &Session{
		logger:         logger,
		handler:        handler,
		gate:           gate,
		address:        net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port)),
		tls:            cfg.Server.TLS,
		nickname:       cfg.Server.Nickname,
		username:       cfg.Server.Username,
		realname:       cfg.Server.Realname,
		channels:       channels,
		quitMessage:    cfg.Bot.QuitMessage,
		maxMsgLen:      maxLen,
		joinDelay:      cfg.Limits.GetJoinDelayDuration(),
		connectTimeout: cfg.Limits.GetConnectTimeoutDuration(),
		writeTimeout:   cfg.Limits.GetWriteTimeoutDuration(),
		readTimeout:    cfg.Limits.GetReadTimeoutDuration(),
		joined:         make(map[string]bool),
	}
}

// SetDialer replaces the default TCP/TLS dialer
func (s *Session) SetDialer(d DialFunc) {
	s.dial = d
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state.load()
}

// Address returns host:port of the server
func (s *Session) Address() string {
	return s.address
}

// ReachedReady reports whether the server ever accepted the registration
func (s *Session) ReachedReady() bool {
	return s.reachedReady.Load()
}

// Stopped reports whether Stop was requested
func (s *Session) Stopped() bool {
	return s.stopping.Load()
}

// Run connects, registers and runs the read loop until the session ends.
// It returns nil after Stop or context cancellation and a Transport error
// when the connection failed.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.ErrSessionUsed
	}
	defer s.state.store(StateDisconnected)

	stopWatch := context.AfterFunc(ctx, s.Stop)
	defer stopWatch()

	joinCtx, cancel := context.WithCancel(context.Background())
	s.joinCancel = cancel
	defer cancel()

	s.state.store(StateConnecting)
	s.logger.Info("Connecting to %s...", s.address)

	conn, err := s.connect(ctx)
	if err != nil {
		if s.ended(ctx) {
			return nil
		}
		return errors.NewTransportError("dial", s.address, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	if s.ended(ctx) {
		s.closeConn()
		return nil
	}
	s.logger.Success("Connected to %s", s.address)

	s.state.store(StateHandshaking)
	err = s.handshake()
	if err == nil {
		s.state.advance(StateHandshaking, StateAwaitingReady)
		err = s.readLoop(joinCtx, conn)
	}

	s.shutdown()
	s.joinWG.Wait()

	if s.ended(ctx) {
		return nil
	}
	return err
}

// ended reports whether Stop was called or ctx is done. The AfterFunc that
// calls Stop on cancellation may not have run yet, so ctx is checked too.
func (s *Session) ended(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.stopping.Store(true)
	}
	return s.stopping.Load()
}

// Stop ends the session: QUIT is sent best-effort and the transport closed.
// Safe to call from any goroutine, more than once, or before Run.
func (s *Session) Stop() {
	s.stopping.Store(true)
	if s.currentConn() != nil {
		s.shutdown()
	}
}

// SendRaw writes one protocol line. Embedded line terminators are removed
// and the line is written whole, never interleaved with other writers.
// SendRaw is not throttled.
func (s *Session) SendRaw(text string) error {
	return s.writeLine(stripTerminators(text, ""))
}

// SendMessage sends text to a channel. Line terminators are replaced by
// spaces, the text is truncated to the configured length and the send waits
// for the flood gate.
func (s *Session) SendMessage(ctx context.Context, channel, text string) error {
	text = truncate(stripTerminators(text, " "), s.maxMsgLen)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := s.gate.Wait(ctx); err != nil {
		return err
	}
	return s.writeMessage(cmdPrivmsg, channel, text)
}

// IsJoined reports whether a JOIN was sent for channel, ignoring case
func (s *Session) IsJoined(channel string) bool {
	s.joinedMu.RLock()
	defer s.joinedMu.RUnlock()
	return s.joined[strings.ToLower(channel)]
}

func (s *Session) connect(ctx context.Context) (net.Conn, error) {
	if s.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
	}

	if s.dial != nil {
		return s.dial(ctx, "tcp", s.address)
	}

	if s.tls {
		host, _, _ := net.SplitHostPort(s.address)
		d := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		}
		return d.DialContext(ctx, "tcp", s.address)
	}

	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.address)
}

func (s *Session) handshake() error {
	if err := s.writeMessage("NICK", s.nickname); err != nil {
		return err
	}
	return s.writeMessage("USER", s.username, "0", "*", s.realname)
}

func (s *Session) readLoop(joinCtx context.Context, conn net.Conn) error {
	framer := NewFramer()
	buf := make([]byte, 4096)

	for {
		if s.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				if lineErr := s.handleLine(joinCtx, line); lineErr != nil {
					return lineErr
				}
			}
		}

		if err != nil {
			if dropped := framer.Flush(); dropped > 0 {
				s.logger.Debug("Discarded %d bytes of unterminated input", dropped)
			}
			if s.stopping.Load() {
				return nil
			}
			if err == io.EOF {
				s.logger.Warning("Server closed the connection")
			}
			return errors.NewTransportError("read", s.address, err)
		}
		if n == 0 {
			return errors.NewTransportError("read", s.address, errors.ErrZeroRead)
		}
	}
}

func (s *Session) handleLine(joinCtx context.Context, line string) error {
	switch ev := Classify(line).(type) {
	case Keepalive:
		return s.writeMessage("PONG", ev.Token)

	case Ready:
		s.readyOnce.Do(func() {
			s.reachedReady.Store(true)
			s.logger.Success("Registered with %s as %s", s.address, s.nickname)
			s.joinWG.Add(1)
			go s.joinChannels(joinCtx)
		})

	case ChannelMessage:
		if !s.IsJoined(ev.Channel) {
			s.logger.Debug("Ignoring message for %s: not joined", ev.Channel)
			return nil
		}
		s.logger.ChannelMessage(ev.Channel, ev.Nick, ev.Body)
		if s.handler != nil {
			s.handler.HandleMessage(ev.Nick, ev.Channel, ev.Body)
		}

	default:
		if strings.Contains(line, cmdPrivmsg) {
			s.logger.Debug("%v", errors.NewParseError(line))
		}
	}
	return nil
}

// joinChannels issues one JOIN per configured channel in order, with a
// fixed delay between requests
func (s *Session) joinChannels(ctx context.Context) {
	defer s.joinWG.Done()

	s.state.advance(StateAwaitingReady, StateJoiningChannels)

	for i, channel := range s.channels {
		if i > 0 && s.joinDelay > 0 {
			timer := time.NewTimer(s.joinDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
		if err := s.gate.Wait(ctx); err != nil {
			return
		}

		s.markJoined(channel)
		if err := s.writeMessage("JOIN", channel); err != nil {
			s.unmarkJoined(channel)
			s.logger.Error("Failed to join %s: %v", channel, err)
			return
		}
		s.logger.Info("Joining %s", channel)
	}

	if s.state.advance(StateJoiningChannels, StateActive) {
		s.logger.Success("Session active in %d channel(s)", len(s.channels))
	}
}

func (s *Session) markJoined(channel string) {
	s.joinedMu.Lock()
	s.joined[strings.ToLower(channel)] = true
	s.joinedMu.Unlock()
}

func (s *Session) unmarkJoined(channel string) {
	s.joinedMu.Lock()
	delete(s.joined, strings.ToLower(channel))
	s.joinedMu.Unlock()
}

// shutdown runs once: QUIT best-effort, then release the transport
func (s *Session) shutdown() {
	s.shutdownOnce.Do(func() {
		s.state.store(StateShuttingDown)
		if s.joinCancel != nil {
			s.joinCancel()
		}
		if s.stopping.Load() {
			s.logger.Info("Disconnecting from %s", s.address)
		}
		_ = s.writeMessage("QUIT", s.quitMessage)
		s.closeConn()
	})
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		if conn := s.currentConn(); conn != nil {
			_ = conn.Close()
		}
	})
}

func (s *Session) currentConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) writeMessage(command string, params ...string) error {
	msg := &irc.Message{Command: command, Params: params}
	return s.writeLine(msg.String())
}

// writeLine is the single write path. A failed write closes the transport,
// which ends the read loop with a transport error.
func (s *Session) writeLine(line string) error {
	conn := s.currentConn()
	if conn == nil {
		return errors.ErrNotConnected
	}

	s.writeMu.Lock()
	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	_, err := io.WriteString(conn, line+"\r\n")
	s.writeMu.Unlock()

	if err != nil {
		s.closeConn()
		return errors.NewTransportError("write", s.address, err)
	}
	return nil
}

// stripTerminators replaces CR and LF with repl and removes NUL bytes
func stripTerminators(text, repl string) string {
	if !strings.ContainsAny(text, "\r\n\x00") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.NewReplacer("\r", repl, "\n", repl, "\x00", "").Replace(text)
	return text
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
