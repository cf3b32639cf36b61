package bot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceSplitter tokenizes generated text into sentences for reply-length
// limiting. Implementations must treat failure as recoverable: the caller
// falls back to the untruncated text.
type SentenceSplitter interface {
	Split(text string) ([]string, error)
}

// punktSplitter wraps the trained English Punkt tokenizer. The model is
// loaded lazily on first use and reused afterwards.
type punktSplitter struct {
	once      sync.Once
	tokenizer *sentences.DefaultSentenceTokenizer
	err       error
}

// NewSentenceSplitter returns the default English sentence splitter.
func NewSentenceSplitter() SentenceSplitter {
	return &punktSplitter{}
}

func (p *punktSplitter) Split(text string) ([]string, error) {
	p.once.Do(func() {
		p.tokenizer, p.err = english.NewSentenceTokenizer(nil)
	})
	if p.err != nil {
		return nil, fmt.Errorf("initializing sentence tokenizer: %w", p.err)
	}

	raw := p.tokenizer.Tokenize(text)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}
