package ircdebug

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	io.Reader
	bytes.Buffer
}

func (fc *fakeConn) Read(p []byte) (int, error) { return fc.Reader.Read(p) }
func (fc *fakeConn) Close() error               { return nil }

func TestLog(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)

	conn := &fakeConn{Reader: strings.NewReader("PING :1\r\n:srv 001 bot :hi\r\n")}
	dc := Log(logger, conn)

	if _, err := io.ReadAll(dc); err != nil {
		t.Fatal(err)
	}
	// written in two pieces to check that partial lines are held back
	_, _ = dc.Write([]byte("PONG "))
	_, _ = dc.Write([]byte(":1\r\n"))

	if got := conn.Buffer.String(); got != "PONG :1\r\n" {
		t.Errorf("connection received %q", got)
	}

	type entry struct {
		Dir  string `json:"dir"`
		Line string `json:"line"`
	}
	var got []entry
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var e entry
		if err := dec.Decode(&e); err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	want := []entry{
		{"in", "PING :1"},
		{"in", ":srv 001 bot :hi"},
		{"out", "PONG :1"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d log lines, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
