/*
Package ircdebug contains helper functions that are useful while writing an IRC client.
*/
package ircdebug

import (
	"bytes"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Log returns a new io.ReadWriteCloser that logs every line read from or written to rwc
// at debug level. Lines read are tagged with dir "in", lines written with dir "out".
// This is mainly useful while developing an IRC client like a bot.
func Log(logger zerolog.Logger, rwc io.ReadWriteCloser) io.ReadWriteCloser {
	in := &lineLogger{logger: logger, dir: "in"}
	out := &lineLogger{logger: logger, dir: "out"}
	return &debugConn{
		ReadWriteCloser: rwc,
		r:               io.TeeReader(rwc, in),
		w:               io.MultiWriter(rwc, out),
	}
}

type debugConn struct {
	io.ReadWriteCloser
	r io.Reader
	w io.Writer
}

func (dc *debugConn) Read(p []byte) (int, error) {
	return dc.r.Read(p)
}

func (dc *debugConn) Write(p []byte) (int, error) {
	return dc.w.Write(p)
}

// lineLogger buffers partial writes and logs one event per complete line.
type lineLogger struct {
	logger zerolog.Logger
	dir    string

	mu  sync.Mutex
	buf []byte
}

func (ll *lineLogger) Write(p []byte) (int, error) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	ll.buf = append(ll.buf, p...)
	for {
		i := bytes.IndexByte(ll.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(ll.buf[:i], "\r")
		ll.logger.Debug().Str("dir", ll.dir).Bytes("line", line).Msg("irc")
		ll.buf = ll.buf[i+1:]
	}
	// MultiWriter treats a short count as an error
	return len(p), nil
}
