package modules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/playground"
)

// maxOutputLines is how many lines of program output are replied in chat.
// Longer output is pasted instead.
const maxOutputLines = 2

// crateAttrs matches leading inner attributes such as #![feature(...)],
// which must stay outside of fn main.
var crateAttrs = regexp.MustCompile(`^(\s*#!\[.*?\])*`)

// Playground evaluates Rust code sent to the bot directly:
//
//	playbot: --nightly --release 1 + 1
//
// The code is wrapped into a main function that prints its value,
// unless --bare is given.
type Playground struct {
	Client CodeRunner
	Help   *Help
	Logger zerolog.Logger
}

// Register implements Module.
func (m *Playground) Register(r *bot.Registry) {
	r.Fallback(m)
}

type runOptions struct {
	channel     playground.Channel
	mode        playground.Mode
	showVersion bool
	bare        bool
	help        bool
}

// parseFlags consumes the leading flags of body and returns the remaining code.
func parseFlags(body string) (runOptions, string) {
	opts := runOptions{channel: playground.Stable, mode: playground.Debug}
	for {
		body = strings.TrimLeft(body, " \t\n\r\v\f")
		fields := strings.Fields(body)
		if len(fields) == 0 {
			return opts, body
		}
		flag := fields[0]
		switch flag {
		case "--stable":
			opts.channel = playground.Stable
		case "--beta":
			opts.channel = playground.Beta
		case "--nightly":
			opts.channel = playground.Nightly
		case "--version", "VERSION":
			opts.showVersion = true
		case "--bare", "--mini":
			opts.bare = true
		case "--debug":
			opts.mode = playground.Debug
		case "--release":
			opts.mode = playground.Release
		case "help", "h", "-h", "--help", "--h":
			opts.help = true
			return opts, body
		default:
			return opts, body
		}
		body = body[len(flag):]
	}
}

// HandleFallback implements bot.FallbackHandler.
func (m *Playground) HandleFallback(ctx *bot.Context) bot.Flow {
	if !ctx.IsDirectlyAddressed() {
		return bot.Continue
	}

	opts, code := parseFlags(ctx.Body().String())
	switch {
	case opts.help:
		m.Help.Display(ctx)
		return bot.Break
	case opts.showVersion:
		m.printVersion(ctx, opts.channel)
		return bot.Break
	}

	if !opts.bare {
		code = wrapMain(code)
	}
	req := playground.NewExecuteRequest(code)
	req.Channel = opts.channel
	req.Mode = opts.mode
	execute(ctx, m.Client, req, m.Logger)
	return bot.Break
}

func (m *Playground) printVersion(ctx *bot.Context, channel playground.Channel) {
	v, err := m.Client.Version(context.Background(), channel)
	if err != nil {
		m.Logger.Error().Err(err).Str("channel", string(channel)).Msg("failed to get version")
		return
	}
	reply(ctx, fmt.Sprintf("%s (%.9s %s)", v.Version, v.Hash, v.Date))
}

// wrapMain puts code into a main function that prints the value of its last expression.
// Leading crate attributes are hoisted out of main.
func wrapMain(code string) string {
	attrs := crateAttrs.FindString(code)
	code = code[len(attrs):]
	return fmt.Sprintf(`#![allow(dead_code, unused_variables, unused_imports)]
%s

fn main() {
    println!("{:?}", {
        %s
    });
}
`, strings.TrimSpace(attrs), code)
}

// execute runs req and replies with the first lines of output.
// Output that does not fit is pasted and linked.
func execute(ctx *bot.Context, client CodeRunner, req *playground.ExecuteRequest, logger zerolog.Logger) {
	resp, err := client.Execute(context.Background(), req)
	if err != nil {
		logger.Error().Err(err).Str("source", ctx.Source()).Msg("failed to execute code")
		return
	}

	output, skip := resp.Stdout, 0
	if !resp.Success {
		// the first line of stderr is the "Compiling playground" banner
		output, skip = resp.Stderr, 1
	}
	lines := bot.SplitLines(output)

	shown := lines[min(skip, len(lines)):]
	if len(shown) > maxOutputLines {
		shown = shown[:maxOutputLines]
	}
	for _, line := range shown {
		reply(ctx, line)
	}

	if len(lines) <= maxOutputLines {
		return
	}
	url, err := client.Paste(context.Background(), pasteBody(req.Code, resp), req.Channel, req.Mode)
	if err != nil {
		logger.Error().Err(err).Str("source", ctx.Source()).Msg("failed to paste output")
		return
	}
	reply(ctx, "~~~ Output truncated; full output at "+url)
}

// pasteBody is the code with its complete output appended as a comment.
func pasteBody(code string, resp *playground.ExecuteResponse) string {
	return fmt.Sprintf("%s\n\n/*~~~~~~~~~~~~~~~ stdout ~~~~~~~~~~~~~~~\n%s\n~~~~~~~~~~~~~~~ stderr ~~~~~~~~~~~~~~~\n%s\n*/\n",
		code, resp.Stdout, resp.Stderr)
}
