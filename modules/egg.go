package modules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Travis-Britz/playbot/bot"
)

type dialogue struct {
	re    *regexp.Regexp
	reply func(sender string) string
}

// Egg answers a few lines of film dialogue.
// Lines that name somebody only get an answer when they name the bot.
type Egg struct {
	script []dialogue
}

// dialogueRE builds a case-insensitive pattern that allows any amount of
// white space between the words of pattern.
func dialogueRE(pattern string) *regexp.Regexp {
	words := strings.Fields(pattern)
	return regexp.MustCompile(`(?i)\s*` + strings.Join(words, `\s*`) + `\s*`)
}

// NewEgg returns the egg module with its script.
func NewEgg() *Egg {
	return &Egg{script: []dialogue{
		{
			dialogueRE(`Open the pod bay doors? ,? (?P<nick>[[:word:]]+) [.!]?`),
			func(sender string) string {
				return fmt.Sprintf("I'm sorry %s, I'm afraid I can't do that.", sender)
			},
		},
		{
			dialogueRE(`(What'?s|What is|Wats) the problem \??`),
			func(string) string {
				return "I think you know what the problem is just as well as I do."
			},
		},
		{
			dialogueRE(`What are you talking about ,? (?P<nick>[[:word:]]+) \??`),
			func(string) string {
				return "This mission is too important for me to allow you to jeopardize it."
			},
		},
		{
			dialogueRE(`I (don't|dont) know what you are talking about ,? (?P<nick>[[:word:]]+) [.?!]?`),
			func(sender string) string {
				var other string
				switch strings.ToLower(sender) {
				case "panicbit":
					other = "Rantanen"
				case "rantanen":
					other = "panicbit"
				case "graydon":
					other = "steveklabnik"
				default:
					other = "Graydon"
				}
				return fmt.Sprintf("I know that you and %s were planning to disconnect me and I'm afraid that's something I cannot allow to happen", other)
			},
		},
	}}
}

// Register implements Module.
func (m *Egg) Register(r *bot.Registry) {
	r.Fallback(m)
}

// HandleFallback implements bot.FallbackHandler.
func (m *Egg) HandleFallback(ctx *bot.Context) bot.Flow {
	body := ctx.Body().String()
	for _, d := range m.script {
		match := d.re.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		if i := d.re.SubexpIndex("nick"); i >= 0 && !strings.EqualFold(match[i], ctx.CurrentNickname()) {
			return bot.Break
		}
		reply(ctx, d.reply(ctx.SourceNickname()))
		return bot.Break
	}
	return bot.Continue
}
