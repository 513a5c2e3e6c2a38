package irc

import (
	"bufio"
	"context"
	stderrors "errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/kukisti/internal/config"
	"github.com/yourusername/kukisti/internal/errors"
	"github.com/yourusername/kukisti/internal/output"
	"go.uber.org/goleak"
	"gopkg.in/irc.v4"
)

// fakeServer is the far end of a net.Pipe that records every line the
// session writes
type fakeServer struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func newFakeServer(t *testing.T) (*fakeServer, DialFunc) {
	t.Helper()
	client, server := net.Pipe()
	srv := &fakeServer{t: t, conn: server, lines: make(chan string, 64)}

	go func() {
		defer close(srv.lines)
		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			srv.lines <- strings.TrimSuffix(scanner.Text(), "\r")
		}
	}()
	t.Cleanup(func() { _ = server.Close() })

	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		return client, nil
	}
	return srv, dial
}

func (s *fakeServer) send(lines ...string) {
	s.t.Helper()
	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := s.conn.Write([]byte(strings.Join(lines, "\r\n") + "\r\n")); err != nil {
		s.t.Fatalf("server write failed: %v", err)
	}
}

// expect reads the next line from the session and checks its command
func (s *fakeServer) expect(command string) *irc.Message {
	s.t.Helper()
	select {
	case line, ok := <-s.lines:
		if !ok {
			s.t.Fatalf("connection closed while waiting for %s", command)
		}
		msg, err := irc.ParseMessage(line)
		if err != nil {
			s.t.Fatalf("session sent unparsable line %q: %v", line, err)
		}
		if msg.Command != command {
			s.t.Fatalf("got %q, want command %s", line, command)
		}
		return msg
	case <-time.After(2 * time.Second):
		s.t.Fatalf("timed out waiting for %s", command)
	}
	return nil
}

func (s *fakeServer) close() {
	_ = s.conn.Close()
}

type recordedMessage struct {
	nick, channel, body string
}

type recorder struct {
	mu       sync.Mutex
	messages []recordedMessage
	onMsg    func(nick, channel, body string)
}

func (r *recorder) HandleMessage(nick, channel, body string) {
	r.mu.Lock()
	r.messages = append(r.messages, recordedMessage{nick, channel, body})
	r.mu.Unlock()
	if r.onMsg != nil {
		r.onMsg(nick, channel, body)
	}
}

func (r *recorder) all() []recordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedMessage(nil), r.messages...)
}

func testConfig(channels ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Address = "irc.test"
	cfg.Server.Nickname = "kukisti"
	cfg.Server.Username = "kuk"
	cfg.Server.Realname = "Kukisti Bot"
	cfg.Bot.Channels = channels
	cfg.Bot.QuitMessage = "see you"
	cfg.Limits.JoinDelayMS = 5
	cfg.Limits.SendIntervalMS = 0
	cfg.Limits.WriteTimeout = 2
	cfg.Limits.ReadTimeout = 0
	return cfg
}

type runResult struct {
	err error
}

func startSession(t *testing.T, cfg *config.Config, h MessageHandler) (*Session, *fakeServer, chan runResult) {
	t.Helper()
	srv, dial := newFakeServer(t)
	s := NewSession(cfg, output.NopLogger{}, h, nil)
	s.SetDialer(dial)

	done := make(chan runResult, 1)
	go func() {
		done <- runResult{err: s.Run(context.Background())}
	}()

	srv.expect("NICK")
	user := srv.expect("USER")
	if len(user.Params) != 4 || user.Params[0] != "kuk" || user.Params[3] != "Kukisti Bot" {
		t.Fatalf("USER params = %q", user.Params)
	}
	return s, srv, done
}

func waitResult(t *testing.T, done chan runResult) error {
	t.Helper()
	select {
	case r := <-done:
		return r.err
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	return nil
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", s.State(), want)
}

func TestSession_JoinOrderOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, srv, done := startSession(t, testConfig("#a", "#b", "#c"), &recorder{})

	if s.State() == StateActive {
		t.Fatal("session active before welcome")
	}
	srv.send(":irc.test 001 kukisti :Welcome")
	for _, ch := range []string{"#a", "#b", "#c"} {
		msg := srv.expect("JOIN")
		if msg.Params[0] != ch {
			t.Fatalf("JOIN %s, want %s", msg.Params[0], ch)
		}
	}
	waitState(t, s, StateActive)

	// A repeated welcome must not start a second join sequence
	srv.send(":irc.test 001 kukisti :Welcome again", "PING :sync")
	if pong := srv.expect("PONG"); pong.Trailing() != "sync" {
		t.Errorf("PONG token = %q", pong.Trailing())
	}

	s.Stop()
	quit := srv.expect("QUIT")
	if quit.Trailing() != "see you" {
		t.Errorf("QUIT message = %q", quit.Trailing())
	}
	if err := waitResult(t, done); err != nil {
		t.Errorf("Run() after Stop = %v, want nil", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want Disconnected", s.State())
	}
}

func TestSession_JoinDelayAndKeepalive(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const delay = 50 * time.Millisecond
	cfg := testConfig("#a", "#b", "#c")
	cfg.Limits.JoinDelayMS = int(delay / time.Millisecond)
	s, srv, done := startSession(t, cfg, &recorder{})

	srv.send(":irc.test 001 kukisti :Welcome")
	srv.expect("JOIN")
	sent := []time.Time{time.Now()}

	// Keepalive is not throttled: the PONG comes before the next JOIN
	srv.send("PING :mid-join")
	if pong := srv.expect("PONG"); pong.Trailing() != "mid-join" {
		t.Errorf("PONG token = %q", pong.Trailing())
	}

	for _, ch := range []string{"#b", "#c"} {
		if msg := srv.expect("JOIN"); msg.Params[0] != ch {
			t.Fatalf("JOIN %s, want %s", msg.Params[0], ch)
		}
		sent = append(sent, time.Now())
	}
	for i := 1; i < len(sent); i++ {
		if gap := sent[i].Sub(sent[i-1]); gap < delay {
			t.Errorf("gap before JOIN %d = %v, want at least %v", i+1, gap, delay)
		}
	}
	waitState(t, s, StateActive)

	s.Stop()
	srv.expect("QUIT")
	_ = waitResult(t, done)
}

func TestSession_KeepaliveBeforeReady(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, srv, done := startSession(t, testConfig("#a"), &recorder{})

	srv.send("PING :abc")
	pong := srv.expect("PONG")
	if len(pong.Params) != 1 || pong.Params[0] != "abc" {
		t.Errorf("PONG params = %q, want [abc]", pong.Params)
	}
	if s.State() != StateAwaitingReady {
		t.Errorf("State() = %v, want AwaitingReady", s.State())
	}

	s.Stop()
	srv.expect("QUIT")
	_ = waitResult(t, done)
}

func TestSession_KeepaliveAnsweredBeforeNextLine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var s *Session
	rec := &recorder{}
	rec.onMsg = func(nick, channel, body string) {
		_ = s.SendMessage(context.Background(), channel, "reply to "+nick)
	}
	s, srv, done := startSession(t, testConfig("#a"), rec)

	srv.send(":irc.test 001 kukisti :Welcome")
	srv.expect("JOIN")
	waitState(t, s, StateActive)

	srv.send("PING :abc", ":alice!a@h PRIVMSG #a :hello")
	if pong := srv.expect("PONG"); pong.Params[0] != "abc" {
		t.Errorf("PONG token = %q", pong.Params[0])
	}
	reply := srv.expect("PRIVMSG")
	if reply.Params[0] != "#a" || reply.Trailing() != "reply to alice" {
		t.Errorf("reply = %q", reply.Params)
	}

	s.Stop()
	srv.expect("QUIT")
	_ = waitResult(t, done)
}

func TestSession_ChannelScoping(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &recorder{}
	s, srv, done := startSession(t, testConfig("#a"), rec)

	// Before the JOIN is sent nothing is delivered
	srv.send(":bob!b@h PRIVMSG #a :too early")
	srv.send(":irc.test 001 kukisti :Welcome")
	srv.expect("JOIN")
	waitState(t, s, StateActive)

	srv.send(
		":bob!b@h PRIVMSG #other :!w paris",
		":bob!b@h PRIVMSG #A :hello",
		"PING :sync",
	)
	srv.expect("PONG")

	got := rec.all()
	want := []recordedMessage{{"bob", "#A", "hello"}}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("delivered = %+v, want %+v", got, want)
	}

	s.Stop()
	srv.expect("QUIT")
	_ = waitResult(t, done)
}

func TestSession_TransportFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, srv, done := startSession(t, testConfig("#a"), &recorder{})
	srv.close()

	err := waitResult(t, done)
	if !errors.IsTransport(err) {
		t.Fatalf("Run() = %v, want a transport error", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want Disconnected", s.State())
	}
}

func TestSession_DialFailure(t *testing.T) {
	s := NewSession(testConfig("#a"), output.NopLogger{}, nil, nil)
	refused := stderrors.New("connection refused")
	s.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, refused
	})

	err := s.Run(context.Background())
	if !errors.IsTransport(err) || !stderrors.Is(err, refused) {
		t.Fatalf("Run() = %v, want transport error wrapping %v", err, refused)
	}
	if err := s.Run(context.Background()); !stderrors.Is(err, errors.ErrSessionUsed) {
		t.Errorf("second Run() = %v, want ErrSessionUsed", err)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, dial := newFakeServer(t)
	s := NewSession(testConfig("#a"), output.NopLogger{}, nil, nil)
	s.SetDialer(dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runResult, 1)
	go func() { done <- runResult{err: s.Run(ctx)} }()

	srv.expect("NICK")
	srv.expect("USER")
	cancel()
	srv.expect("QUIT")

	if err := waitResult(t, done); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestSession_RunWithCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tests := []struct {
		name string
		dial func(t *testing.T) DialFunc
	}{
		{
			name: "dial fails",
			dial: func(t *testing.T) DialFunc {
				return func(ctx context.Context, network, address string) (net.Conn, error) {
					return nil, stderrors.New("connection refused")
				}
			},
		},
		{
			name: "dial succeeds",
			dial: func(t *testing.T) DialFunc {
				_, dial := newFakeServer(t)
				return dial
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(testConfig("#a"), output.NopLogger{}, nil, nil)
			s.SetDialer(tt.dial(t))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := s.Run(ctx); err != nil {
				t.Errorf("Run() = %v, want nil for a cancelled context", err)
			}
			if !s.Stopped() {
				t.Error("Stopped() = false after cancellation")
			}
			if s.State() != StateDisconnected {
				t.Errorf("State() = %v, want Disconnected", s.State())
			}
		})
	}
}

func TestSession_SendMessageSanitizes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig("#a")
	cfg.Server.MaxMessageLength = 16
	s, srv, done := startSession(t, cfg, &recorder{})

	tests := []struct {
		name string
		text string
		want string
	}{
		{"embedded CRLF", "one\r\ntwo", "one two"},
		{"bare LF and NUL", "a\nb\x00c", "a bc"},
		{"injection attempt", "hi\r\nQUIT :pwned", "hi QUIT :pwned"},
		{"truncated on rune boundary", "ääääääääää", "ääääääää"},
	}

	// srv is bound to the parent test, so cases run inline
	for _, tt := range tests {
		if err := s.SendMessage(context.Background(), "#a", tt.text); err != nil {
			t.Fatalf("%s: SendMessage() error = %v", tt.name, err)
		}
		msg := srv.expect("PRIVMSG")
		if msg.Trailing() != tt.want {
			t.Errorf("%s: sent %q, want %q", tt.name, msg.Trailing(), tt.want)
		}
	}

	// Empty after sanitising sends nothing
	if err := s.SendMessage(context.Background(), "#a", "\r\n"); err != nil {
		t.Errorf("SendMessage() error = %v", err)
	}

	if err := s.SendRaw("PING :x\r\n"); err != nil {
		t.Fatal(err)
	}
	if ping := srv.expect("PING"); ping.Params[0] != "x" {
		t.Errorf("raw line params = %q", ping.Params)
	}

	s.Stop()
	srv.expect("QUIT")
	_ = waitResult(t, done)

	if err := s.SendMessage(context.Background(), "#a", "late"); !errors.IsTransport(err) {
		t.Errorf("SendMessage() after stop = %v, want transport error", err)
	}
}

func TestSession_StopBeforeRun(t *testing.T) {
	srv, dial := newFakeServer(t)
	s := NewSession(testConfig("#a"), output.NopLogger{}, nil, nil)
	s.SetDialer(dial)
	s.Stop()

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() after Stop = %v, want nil", err)
	}
	if _, ok := <-srv.lines; ok {
		t.Error("session wrote to the server after an early Stop")
	}
}
