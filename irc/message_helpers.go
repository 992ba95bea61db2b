package irc

import (
	"fmt"
	"strings"
)

// Text returns the free-form text portion of a message for the well-known (named) IRC commands.
// An error is returned if the method is called for unsupported message types.
// If err is not nil, then Text will contain the entire parameter list joined together as one string.
//
// In the case of PART and KICK, Text contains the <reason> message parameter.
//
// The error may be discarded without checking when the handler is only ever called for PRIVMSG events.
func (m *Message) Text() (string, error) {
	switch m.Command {
	case CmdQuit, CmdError:
		return m.Params.Get(1), nil
	case CmdPrivmsg, CmdNotice, CmdTopic, CmdPart, CmdMode:
		return m.Params.Get(2), nil
	case CmdKick:
		return m.Params.Get(3), nil
	default:
		return strings.Join(m.Params, " "), fmt.Errorf("text: command %s is not supported", m.Command)
	}
}

// Target is the target of the message, which will be the current nickname of
// the client in the case of direct messages (queries), or the channel
// name if sent to a channel, or a prefix followed by the channel name
// if sent to a specific group of users in a channel, e.g. "+#foo"
// for all users on a channel with +v or higher.
func (m *Message) Target() (string, error) {
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CmdInvite, CmdTopic, CmdKick, CmdPart, CmdMode:
		return m.Params.Get(1), nil
	default:
		return "", fmt.Errorf("%s: target method not supported", m.Command)
	}
}

// Chan returns the channel a message applies to.
// In the case of query messages, Chan will return an empty string.
// If the message target was a channel name prefixed with membership prefixes ('@', '%', '+'), the prefixes will be stripped.
func (m *Message) Chan() (string, error) {
	var target string
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CmdJoin, CmdTopic, CmdKick, CmdPart:
		target = m.Params.Get(1)
	case CmdInvite:
		target = m.Params.Get(2)
	default:
		return "", fmt.Errorf("%s: chan method not supported", m.Command)
	}
	target = strings.TrimLeft(target, "@%~")
	if !IsChannelName(target) {
		return "", nil
	}
	return target, nil
}

// IsChannelName reports whether name begins with one of the common channel prefixes.
//
// A leading '+' is ambiguous on networks that use it as the voice STATUSMSG prefix,
// so callers that care should strip membership prefixes first.
func IsChannelName(name string) bool {
	return name != "" && strings.IndexByte(channelPrefixes, name[0]) >= 0
}

// ResponseTarget returns where a reply to m should be sent:
// the channel for channel messages, otherwise the nickname of the sender.
// The boolean is false when m has no meaningful reply target.
func (m *Message) ResponseTarget() (string, bool) {
	target, err := m.Target()
	if err != nil || target == "" {
		return "", false
	}
	if IsChannelName(target) {
		return target, true
	}
	if m.Source.Nick == "" {
		return "", false
	}
	return m.Source.Nick.String(), true
}
