// Package tokens estimates token cost for transcript text without a model
// specific tokenizer.
//
// Dense scripts (Han, Kana, Hangul) cost roughly one token per rune while
// Latin text and code average about four runes per token, so the counter
// weighs the two classes separately instead of applying a single ratio.
package tokens

import (
	"encoding/json"
	"unicode"

	"github.com/Gurpartap/taskloop/agent"
)

const (
	defaultRunesPerToken      = 4
	defaultMessageOverhead    = 4
	defaultDenseTokensPerRune = 1
)

// Counter estimates token counts. The zero value counts with the default
// densities and no per-message overhead.
type Counter struct {
	runesPerToken      int
	denseTokensPerRune int
	messageOverhead    int
}

// Option customizes a Counter.
type Option func(*Counter)

// WithRunesPerToken sets the Latin/code density.
func WithRunesPerToken(n int) Option {
	return func(c *Counter) {
		if n > 0 {
			c.runesPerToken = n
		}
	}
}

// WithMessageOverhead sets the fixed per-message framing cost.
func WithMessageOverhead(n int) Option {
	return func(c *Counter) {
		if n >= 0 {
			c.messageOverhead = n
		}
	}
}

func New(opts ...Option) Counter {
	c := Counter{
		runesPerToken:      defaultRunesPerToken,
		denseTokensPerRune: defaultDenseTokensPerRune,
		messageOverhead:    defaultMessageOverhead,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Count estimates the tokens of a single text.
func (c Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	dense, other := 0, 0
	for _, r := range text {
		if isDense(r) {
			dense++
			continue
		}
		other++
	}
	runesPerToken, denseTokensPerRune := c.runesPerToken, c.denseTokensPerRune
	if runesPerToken <= 0 {
		runesPerToken = defaultRunesPerToken
	}
	if denseTokensPerRune <= 0 {
		denseTokensPerRune = defaultDenseTokensPerRune
	}
	return dense*denseTokensPerRune + ceilDiv(other, runesPerToken)
}

// CountMessages estimates the tokens of a message list including tool call payloads.
func (c Counter) CountMessages(messages []agent.Message) int {
	total := 0
	for _, message := range messages {
		total += c.messageOverhead
		total += c.Count(message.Content)
		for _, call := range message.ToolCalls {
			total += c.Count(call.Name)
			if len(call.Arguments) == 0 {
				continue
			}
			encoded, err := json.Marshal(call.Arguments)
			if err != nil {
				continue
			}
			total += c.Count(string(encoded))
		}
	}
	return total
}

func isDense(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
