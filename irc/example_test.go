package irc_test

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Travis-Britz/playbot/irc"
)

// Params are positional, so Get treats a missing parameter and an empty one the same way.
// The parser only interprets syntax; it does not know how many parameters a PART command has.
func ExampleParams_Get() {
	lines := []string{
		":WiZ PART #rust",
		":WiZ PART #rust :",
		":WiZ PART #rust :off to bed",
	}
	for _, line := range lines {
		m, err := irc.ParseMessage(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Printf("%#v -> %q, %q\n", m.Params, m.Params.Get(1), m.Params.Get(2))
	}
	// Output:
	// irc.Params{"#rust"} -> "#rust", ""
	// irc.Params{"#rust", ""} -> "#rust", ""
	// irc.Params{"#rust", "off to bed"} -> "#rust", "off to bed"
}

// A reply goes to the channel for channel messages and to the sender for queries.
func ExampleMessage_ResponseTarget() {
	for _, line := range []string{
		":alice!a@example.com PRIVMSG #rust :?help",
		":alice!a@example.com PRIVMSG playbot :?help",
	} {
		m, _ := irc.ParseMessage(line)
		target, _ := m.ResponseTarget()
		fmt.Println(target)
	}
	// Output:
	// #rust
	// alice
}

func ExampleRouter_Use() {
	logger := zerolog.New(os.Stderr)

	r := &irc.Router{}
	r.Use(
		irc.Recover(logger),
		irc.FloodLimit(context.Background(), rate.Limit(2), 4),
	)
	r.OnConnect(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#rust"))
	})
}
