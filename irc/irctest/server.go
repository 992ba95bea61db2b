// Package irctest provides an in-memory IRC server for testing clients.
package irctest

import (
	"bufio"
	"bytes"
	"encoding"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Travis-Britz/playbot/irc"
)

// NewServer creates a new mock irc server that implements io.ReadWriteCloser.
// Don't forget to close.
func NewServer() *Server {
	s := &Server{Logger: zerolog.Nop()}
	s.sendReader, s.sendWriter = io.Pipe()
	s.recvReader, s.recvWriter = io.Pipe()

	s.recv = make(chan []byte, 16)

	// should exit when Close() is called
	go s.read()
	go s.write()
	return s
}

// Server is the remote end of a client connection.
// Lines written by the client are parsed and passed to Handler,
// which answers through the server's MessageWriter.
type Server struct {
	Handler irc.Handler
	Logger  zerolog.Logger

	mu       sync.Mutex
	received []*irc.Message

	rs   sync.Once
	recv chan []byte

	recvReader *io.PipeReader
	recvWriter *io.PipeWriter

	sendReader *io.PipeReader
	sendWriter *io.PipeWriter
}

// Read is how the client reads lines from the server
func (s *Server) Read(p []byte) (int, error) {
	return s.sendReader.Read(p)
}

// Write is how a client sends messages to the server
func (s *Server) Write(p []byte) (n int, err error) {
	defer func() {
		// writing after Close reports a closed pipe like a real connection would
		if recover() != nil {
			n, err = 0, io.ErrClosedPipe
		}
	}()
	s.recv <- bytes.Clone(p)
	return len(p), nil
}

func (s *Server) Close() error {
	_ = s.recvWriter.Close()
	_ = s.sendWriter.Close()
	s.rs.Do(func() {
		close(s.recv)
	})
	return nil
}

// Received returns every message the client has sent so far, in order.
func (s *Server) Received() []*irc.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*irc.Message, len(s.received))
	copy(out, s.received)
	return out
}

// WriteString sends messages to the client.
func (s *Server) WriteString(str string) {
	if !strings.HasSuffix(str, "\r\n") {
		str = str + "\r\n"
	}
	if _, err := s.sendWriter.Write([]byte(str)); err != nil {
		s.Logger.Debug().Err(err).Msg("mock server write")
	}
}

// WriteMessage sends messages from the server to the client
func (s *Server) WriteMessage(m encoding.TextMarshaler) {
	b, err := m.MarshalText()
	if err != nil {
		s.Logger.Error().Err(err).Msg("mock server marshal")
		return
	}
	s.WriteString(string(b))
}

func (s *Server) read() {
	scanner := bufio.NewScanner(s.recvReader)

	for scanner.Scan() {
		line := bytes.TrimSuffix(scanner.Bytes(), []byte("\r"))
		m, err := irc.ParseMessage(string(line))
		if err != nil {
			s.Logger.Error().Err(err).Bytes("line", line).Msg("mock server parse")
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, m)
		s.mu.Unlock()
		if s.Handler != nil {
			s.Handler.SpeakIRC(s, m)
		}
	}
}

func (s *Server) write() {
	for b := range s.recv {
		if _, err := s.recvWriter.Write(b); err != nil {
			s.Logger.Debug().Err(err).Msg("mock server pipe")
		}
	}
}
