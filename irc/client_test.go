package irc_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/irc/irctest"
)

func TestClient_ConnectAndRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server := newServer(false)
	defer server.Close()

	client := &irc.Client{Nickname: "HelloBot"}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		return server, nil
	}
	h := &irc.Router{}
	h.OnConnect(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#asd"))
	})
	h.OnJoin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Quit("bye"))
	}).MatchClient(client).MatchChan("#asd")

	err := client.ConnectAndRun(ctx, h)
	if err != nil {
		t.Errorf("expected client to exit without errors, got: %v", err)
	}

	// replies are written from different goroutines, so only registration order is fixed
	count := map[string]int{}
	received := server.Received()
	for _, m := range received {
		count[m.Command.String()]++
	}
	want := map[string]int{"CAP": 3, "NICK": 1, "USER": 1, "PONG": 1, "JOIN": 1, "QUIT": 1}
	if fmt.Sprint(count) != fmt.Sprint(want) {
		t.Errorf("client sent %v, want %v", count, want)
	}
	if len(received) > 0 && !received[len(received)-1].Command.Is(irc.CmdQuit) {
		t.Errorf("expected QUIT to be the last message, got %s", received[len(received)-1].Command)
	}
}

func TestClient_nicknameInUse(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server := newServer(true)
	defer server.Close()

	client := &irc.Client{Nickname: "HelloBot"}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		return server, nil
	}
	var connectedAs irc.Nickname
	h := &irc.Router{}
	h.OnConnect(func(w irc.MessageWriter, m *irc.Message) {
		connectedAs = client.Nick()
		w.WriteMessage(irc.Quit("bye"))
	})

	if err := client.ConnectAndRun(ctx, h); err != nil {
		t.Errorf("expected client to exit without errors, got: %v", err)
	}
	if connectedAs != "HelloBot_" {
		t.Errorf("expected the alternate nickname, got %q", connectedAs)
	}
}

func TestClient_contextCancelSendsQuit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	server := newServer(false)
	defer server.Close()

	client := &irc.Client{Nickname: "HelloBot"}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		return server, nil
	}
	h := &irc.Router{}
	h.OnConnect(func(w irc.MessageWriter, m *irc.Message) {
		cancel()
	})

	done := make(chan error, 1)
	go func() { done <- client.ConnectAndRun(ctx, h) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected a graceful exit, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client did not exit after the context was canceled")
	}

	received := server.Received()
	if len(received) == 0 || !received[len(received)-1].Command.Is(irc.CmdQuit) {
		t.Errorf("expected the last message to be QUIT")
	}
}

// newServer returns a mock server which registers the client.
// When nickTaken is true the first NICK is rejected with ERR_NICKNAMEINUSE.
func newServer(nickTaken bool) *irctest.Server {
	s := irctest.NewServer()
	state := struct {
		servername   string
		clientPrefix irc.Prefix
		connected    bool
		nickRejected bool
	}{clientPrefix: irc.Prefix{Host: "1.2.3.4"}, servername: "irc.example.com"}

	connectSuccess := func() {
		state.connected = true
		s.WriteString(fmt.Sprintf(":%s 001 %s :Welcome to the IRC Network %s\r\n", state.servername, state.clientPrefix.Nick, state.clientPrefix.String()))
		s.WriteString(fmt.Sprintf(":%s 002 %s :Your host is %s, running version 69\r\n", state.servername, state.clientPrefix.Nick, state.servername))
		s.WriteString(fmt.Sprintf(":%s 004 %s %s 69 i nt\r\n", state.servername, state.clientPrefix.Nick, state.servername))
		s.WriteString("PING :9324421\r\n")
		s.WriteString(fmt.Sprintf(":%s 396 %s %s :is now your displayed host\r\n", state.servername, state.clientPrefix.Nick, state.clientPrefix.Host))
	}

	s.Handler = irc.HandlerFunc(func(w irc.MessageWriter, m *irc.Message) {
		switch m.Command {
		case "CAP":
			if m.Params.Get(1) == "LS" {
				s.WriteString(fmt.Sprintf(":%s CAP * LS :multi-prefix\r\n", state.servername))
			}

		case "QUIT":
			s.WriteString(fmt.Sprintf("ERROR :Closing link: %s (QUIT: %s)\r\n", state.clientPrefix.Nick, m.Params.Get(1)))
			_ = s.Close()

		case "USER":
			if !state.connected {
				state.clientPrefix.User = "~" + m.Params.Get(1)
				if state.clientPrefix.Nick != "" {
					connectSuccess()
				}
			}

		case "NICK":
			newnick := irc.Nickname(m.Params.Get(1))
			if nickTaken && !state.nickRejected {
				state.nickRejected = true
				s.WriteString(fmt.Sprintf(":%s 433 * %s :Nickname is already in use\r\n", state.servername, newnick))
				return
			}
			if !state.connected {
				state.clientPrefix.Nick = newnick
				if state.clientPrefix.User != "" {
					connectSuccess()
				}
				return
			}
			s.WriteString(fmt.Sprintf(":%s NICK :%s\r\n", state.clientPrefix.String(), newnick))
			state.clientPrefix.Nick = newnick
		case "JOIN":
			s.WriteString(fmt.Sprintf(":%s JOIN :%s\r\n", state.clientPrefix.String(), m.Params.Get(1)))
		}
	})

	return s
}
