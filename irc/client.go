package irc

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errPingTimeout = errors.New("ping timeout")

// A Client manages a connection to an IRC server.
// It reads/writes IRC lines on the connection,
// and calls the handler for each Message it parses from the connection.
type Client struct {

	// The address ("host:port") of the IRC server. Only TLS connections are supported; use DialFn for anything else.
	// Addr is only used when DialFn is nil.
	Addr string

	// The nickname used by the Client when connecting to an IRC network (required).
	// Nicknames cannot contain spaces.
	Nickname string

	// The user name. Defaults to "guest".
	User string

	// The realname of the client, also referred to as the gecos field.
	// Realname may contain spaces.
	Realname string

	// The connection password (optional: depends on the network).
	Pass string

	// DialFn returns the connection to speak IRC on.
	//
	// The returned connection can be any io.ReadWriteCloser: irc, ircs, ws, wss, a server mock, etc.
	// The only requirement is that the stream consists of CRLF-delimited IRC messages.
	//
	// When DialFn is nil, the default behavior dials Addr with tls.Dial.
	DialFn func() (io.ReadWriteCloser, error)

	// Logger receives parse and encoding problems which are not a reason to disconnect.
	// If nil, nothing is logged.
	Logger *zerolog.Logger

	// PingInterval is how long the connection may stay idle before the client checks it with a PING.
	// Defaults to two minutes.
	PingInterval time.Duration

	// wmu serializes writes and guards conn.
	wmu  sync.Mutex
	conn io.ReadWriteCloser

	handler Handler
	state   clientState
	wg      sync.WaitGroup

	// errC is a buffered channel of errors.
	// Only the first error sent to the channel will be used.
	errC chan error
}

// ConnectAndRun establishes a connection to the remote IRC server and sends the appropriate
// IRC protocol commands to begin the connection and capability negotiation.
//
// The Handler h is called for every incoming Message parsed from the connection.
// Handlers are called synchronously because the ordering of incoming messages matters.
//
// ConnectAndRun always returns an error, with one exception: if the client sends an IRC "QUIT"
// message followed by receiving an io.EOF from the connection, then the returned error
// will be nil.
func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
	if c.Nickname == "" {
		panic("client nickname cannot be empty")
	}
	if c.User == "" {
		c.User = "guest"
	}
	if c.Realname == "" {
		// Realname is required by the protocol but not important to us.
		c.Realname = "..."
	}
	if c.DialFn == nil {
		if c.Addr == "" {
			panic("ConnectAndRun: Addr cannot be empty when DialFn is nil")
		}
		c.DialFn = func() (io.ReadWriteCloser, error) {
			return tls.Dial("tcp", c.Addr, nil)
		}
	}

	// mainctx doesn't use ctx as a parent because we listen for ctx.Done() to trigger
	// a graceful shutdown (sending QUIT), which needs the goroutines to still be running.
	mainctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.state.reset(c.Nickname, c.User, strings.Split(c.Addr, ":")[0])

	conn, err := c.DialFn()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	if c.conn != nil {
		c.wmu.Unlock()
		_ = conn.Close()
		return errors.New("the client already has a connection")
	}
	c.conn = conn
	c.wmu.Unlock()
	defer func() {
		c.wmu.Lock()
		_ = c.conn.Close()
		c.conn = nil
		c.wmu.Unlock()
	}()

	c.errC = make(chan error, 1)
	var runErr error

	// trigger shutdown on the first read from the error channel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer conn.Close()
		defer cancel()
		runErr = <-c.errC
	}()

	if h == nil {
		h = noop
	}

	pinger := &pingHandler{
		timeout: func() {
			c.exit(errPingTimeout)
		},
	}

	c.handler = wrap(h, pingMiddleware, pinger.pongHandler, c.state.middleware, capLSHandler)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mainLoop(mainctx, pinger)
	}()

	// when ctx is done we try to close the connection gracefully
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		select {
		case <-mainctx.Done():
			// an error was already read from c.errC and the client is already closing
			return
		case <-ctx.Done():
			c.WriteMessage(Quit("closing link"))
			select {
			case <-mainctx.Done():
			case <-time.After(3 * time.Second):
				c.exit(nil)
			}
		}
	}()

	c.WriteMessage(CapLS("302"))
	if c.Pass != "" {
		c.WriteMessage(Pass(c.Pass))
	}
	c.WriteMessage(Nick(c.Nickname))
	c.WriteMessage(User(c.User, c.Realname))

	c.wg.Wait()
	if runErr == io.EOF && c.state.getStatus() == statusDisconnecting {
		return nil
	}
	return runErr
}

func (c *Client) mainLoop(ctx context.Context, pinger *pingHandler) {
	readLine := c.startReading(ctx)

	idle := c.PingInterval
	if idle <= 0 {
		idle = 2 * time.Minute
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-readLine:
			if !ok {
				c.exit(errors.New("read channel closed"))
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)

			m := new(Message)
			m.IncludePrefix()
			if err := m.UnmarshalText(l); err != nil {
				// A parse error might be caused by a malformed line from the remote server
				// or a bug in our message parser. Neither is a reason to exit.
				c.logger().Warn().Err(err).Bytes("line", l).Msg("parse irc line")
				continue
			}
			// rfc1459: If the prefix is missing from the message, it
			// is assumed to have originated from the connection from which it was
			// received.
			if (m.Source == Prefix{}) {
				m.Source.Host = c.state.getServer()
			}
			c.handler.SpeakIRC(c, m)
		case <-timer.C:
			pinger.ping(ctx, c, "TIMEOUTCHECK")
			timer.Reset(idle)
		}
	}
}

func (c *Client) startReading(ctx context.Context) <-chan []byte {
	lines := make(chan []byte)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(lines)

		s := bufio.NewScanner(c.conn)
		for s.Scan() {
			l := bytes.TrimSuffix(s.Bytes(), []byte("\r"))
			if len(l) == 0 {
				continue
			}
			l = bytes.Clone(l)
			select {
			case <-ctx.Done():
				// the main loop could have returned before the reader, so lines <- l must not block.
				return
			case lines <- l:
			}
		}
		// scanner.Err() returns nil when the reader error was EOF, but we want to know
		// about EOF in order to determine if the connection was terminated gracefully.
		if err := s.Err(); err != nil {
			c.exit(err)
			return
		}
		c.exit(io.EOF)
	}()
	return lines
}

// exit requests the client to exit and return with err. Only the first such error
// is returned; any successive calls to exit will drop the error.
func (c *Client) exit(err error) {
	select {
	case c.errC <- err:
	default:
	}
}

// WriteMessage implements irc.MessageWriter.
// It writes m to the client's connection.
// Marshaling errors will be reported to the client's logger.
// Write errors will cause the client's run method to return with the first error.
func (c *Client) WriteMessage(m encoding.TextMarshaler) {
	// IRC does not provide any guarantees about message delivery,
	// so there is nothing useful to return to the caller.
	if msg, ok := m.(*Message); ok && !msg.includePrefix {
		// the estimated prefix lets MarshalText warn about lines that will be truncated
		msg.Source = c.prefix()
	}

	b, err := m.MarshalText()
	switch {
	case errors.Is(err, ErrLineTooLong):
		c.logger().Warn().Err(err).Msg("sending long line")
	case err != nil:
		c.logger().Error().Err(err).Str("message", fmt.Sprintf("%#v", m)).Msg("marshal irc message")
		return
	}
	if !bytes.HasSuffix(b, []byte("\r\n")) {
		b = append(b, "\r\n"...)
	}

	// intercepting QUIT lets us rewrite ConnectAndRun's error to nil
	// when the exit was intentional
	if bytes.HasPrefix(b, []byte(CmdQuit)) {
		c.state.setStatus(statusDisconnecting)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		c.logger().Error().Bytes("line", bytes.TrimSpace(b)).Msg("write on closed client")
		return
	}
	if _, err = c.conn.Write(b); err != nil {
		c.exit(err)
	}
}

func (c *Client) logger() *zerolog.Logger {
	if c.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Logger
}

// Nick returns the client's current nickname according to the client's internal state tracking.
// This is used by some route matchers to determine when a message originated from or targeted our client.
func (c *Client) Nick() Nickname {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return Nickname(c.state.nick)
}

// prefix returns the estimated prefix based on internal state tracking,
// used by Message to calculate the actual limit of outgoing messages.
func (c *Client) prefix() Prefix {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	return Prefix{
		Nick: Nickname(c.state.nick),
		Host: c.state.host,
		User: c.state.user,
	}
}

// clientState groups and manages access to a minimal set of
// state around each new connection to the IRC server.
type clientState struct {
	mu sync.RWMutex

	// the client's current nickname, used for calculating max outgoing message length and for
	// matching events that originated from our client.
	nick string

	// the client's user as seen by the server. This may differ from Client.User on servers
	// which prefix unverified idents with a tilde (~).
	user string

	// the client's host as seen by the server, used for calculating max outgoing message length.
	host string

	// the server the client is connected to, used as the message source when incoming messages didn't contain a prefix.
	server string

	status clientStatus
}

func (s *clientState) reset(nick, user, server string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nick = nick
	s.user = user
	s.host = ""
	s.server = server
	s.status = statusConnecting
}

func (s *clientState) getServer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

func (s *clientState) getStatus() clientStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *clientState) setStatus(st clientStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

var fullAddress = regexp.MustCompile("^([^!@]+)!(.+?)@(.+)?$")

// middleware intercepts various events to keep the client state up to date.
func (s *clientState) middleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		if reply := s.update(m); reply != nil {
			mw.WriteMessage(reply)
		}
		next.SpeakIRC(mw, m)
	})
}

// update applies m to the state and returns a message to send in response, if any.
func (s *clientState) update(m *Message) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Command {

	// Format: "Welcome to the Internet Relay Network <nick>!<user>@<host>"
	case RplWelcome:
		s.status = statusConnected
		// The first param is always the nickname the server registered us with.
		if nick := m.Params.Get(1); nick != "" && nick != "*" {
			s.nick = nick
		}
		fields := strings.Fields(m.Params.Get(2))
		if len(fields) == 0 {
			return nil
		}
		// The format of RPL_WELCOME varies widely; only trust a full address.
		if parts := fullAddress.FindStringSubmatch(fields[len(fields)-1]); parts != nil {
			s.nick = parts[1]
			s.user = parts[2]
			s.host = parts[3]
		}
	case RplMyInfo:
		// checking for more than 2 params is a smoke test for servers like twitch.tv
		// which send a single hyphen instead of the server name.
		if len(m.Params) > 2 {
			s.server = m.Params.Get(2)
		} else {
			s.server = m.Source.Host
		}
	case RplHostHidden:
		// "<target> <host> :is now your displayed host"
		if len(m.Params) > 1 {
			s.host = m.Params.Get(2)
		}
	case RplErrNicknameInUse:
		// Once registered the nickname we have is fine; only pick an alternate during registration.
		if s.status == statusConnecting {
			s.nick += "_"
			return Nick(s.nick)
		}
	case CmdNick:
		if m.Source.Nick.Is(s.nick) {
			s.nick = m.Params.Get(1)
		}
	}
	return nil
}

type clientStatus int

func (s clientStatus) String() string {
	switch s {
	case statusDisconnected:
		return "disconnected"
	case statusConnecting:
		return "connecting"
	case statusConnected:
		return "connected"
	case statusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

const (
	statusDisconnected clientStatus = iota
	statusConnecting
	statusConnected
	statusDisconnecting
)
