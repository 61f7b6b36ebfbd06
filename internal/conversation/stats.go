package conversation

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Stats summarizes the visible history.
type Stats struct {
	Turns           int `json:"turns" yaml:"turns"`
	Characters      int `json:"characters" yaml:"characters"`
	Words           int `json:"words" yaml:"words"`
	Exchanges       int `json:"exchanges" yaml:"exchanges"`
	SummaryTurns    int `json:"summary_turns" yaml:"summary_turns"`
	Summaries       int `json:"summaries" yaml:"summaries"`
	EstimatedTokens int `json:"estimated_tokens" yaml:"estimated_tokens"`
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func tokenCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			slog.Warn("token estimate unavailable", "err", err)
			return
		}
		codec = c
	})
	return codec
}

// estimateTokens counts cl100k_base tokens, falling back to chars/4.
func estimateTokens(text string) int {
	if enc := tokenCodec(); enc != nil {
		if ids, _, err := enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	return len([]rune(text)) / 4
}

// Stats computes counts over the visible history.
func (c *Conversation) Stats() Stats {
	c.mu.Lock()
	turns := append([]Turn(nil), c.turns...)
	summaries := c.summaries
	c.mu.Unlock()

	s := Stats{Turns: len(turns), Exchanges: len(turns) / 2, Summaries: summaries}
	var sb strings.Builder
	for _, t := range turns {
		s.Characters += t.CharLength
		s.Words += len(strings.Fields(t.Text))
		if t.IsSummary() {
			s.SummaryTurns++
		}
		sb.WriteString(t.Text)
		sb.WriteByte('\n')
	}
	if len(turns) > 0 {
		s.EstimatedTokens = estimateTokens(sb.String())
	}
	return s
}
