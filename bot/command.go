package bot

import "github.com/Travis-Britz/playbot/sharedstr"

// Command is a named invocation parsed from a message body,
// such as "?crate serde" with name "crate" and args ["serde"].
type Command struct {
	name sharedstr.Str
	args []sharedstr.Str
}

// ParseCommand extracts a command from body.
// The first word must start with prefix and have something after it;
// every following word is an argument.
func ParseCommand(prefix string, body sharedstr.Str) (Command, bool) {
	fields := body.Trim().Fields()
	if len(fields) == 0 {
		return Command{}, false
	}
	first := fields[0]
	if !first.HasPrefix(prefix) || first.Len() <= len(prefix) {
		return Command{}, false
	}
	return Command{
		name: first.SliceFrom(len(prefix)),
		args: fields[1:],
	}, true
}

// Name is the command name without its prefix.
func (c Command) Name() sharedstr.Str { return c.name }

// Args are the words following the command name.
func (c Command) Args() []sharedstr.Str { return c.args }

// ArgStrings returns the arguments as plain strings.
func ArgStrings(args []sharedstr.Str) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.String()
	}
	return out
}
