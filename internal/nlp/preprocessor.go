package nlp

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/email-classifier/internal/core"
)

const (
	// MaxTokens caps the number of tokens kept per email
	MaxTokens = 50
	// MaxKeyPhrases caps the number of key phrases kept per email
	MaxKeyPhrases = 10

	minTokenRunes    = 3
	minFallbackRunes = 7
	minPhraseWords   = 2
	maxPhraseWords   = 4
)

// Preprocessor extracts tokens and key phrases from email text
type Preprocessor struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	mu        sync.Mutex
	lower     cases.Caser
	caserMu   sync.Mutex
	logger    *zap.Logger
}

// NewPreprocessor creates a new preprocessor.
// When the sentence model cannot be loaded, the whole text is treated as one sentence.
func NewPreprocessor(logger *zap.Logger) *Preprocessor {
	p := &Preprocessor{
		lower:  cases.Lower(language.Portuguese),
		logger: logger,
	}

	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		logger.Warn("Sentence tokenizer unavailable, using whole-text segmentation", zap.Error(err))
	} else {
		p.tokenizer = tokenizer
	}

	return p
}

// Preprocess returns the features of text. It never fails.
func (p *Preprocessor) Preprocess(text string) (features core.Features) {
	folded := p.fold(text)
	tokens := Tokenize(folded)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Key phrase extraction failed, using fallback", zap.Any("panic", r))
			features = core.Features{Tokens: tokens, KeyPhrases: fallbackPhrases(tokens)}
		}
	}()

	phrases := keyPhrases(p.segment(folded))
	if len(phrases) == 0 {
		phrases = fallbackPhrases(tokens)
	}

	return core.Features{Tokens: tokens, KeyPhrases: phrases}
}

// fold applies NFC normalization and lower-casing
func (p *Preprocessor) fold(text string) string {
	p.caserMu.Lock()
	defer p.caserMu.Unlock()
	return p.lower.String(norm.NFC.String(text))
}

func (p *Preprocessor) segment(text string) []string {
	if p.tokenizer == nil {
		return []string{text}
	}

	sents := func() []*sentences.Sentence {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.tokenizer.Tokenize(text)
	}()

	out := make([]string, 0, len(sents))
	for _, s := range sents {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Tokenize splits folded text on every rune that is not a letter or a digit
// and keeps content words of at least three runes, in order.
func Tokenize(folded string) []string {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, min(len(words), MaxTokens))
	for _, w := range words {
		if len(tokens) == MaxTokens {
			break
		}
		if utf8.RuneCountInString(w) < minTokenRunes || isStopword(w) {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// keyPhrases collects runs of consecutive content words delimited by
// stopwords or punctuation, deduplicated in order of appearance.
func keyPhrases(sents []string) []string {
	seen := make(map[string]struct{})
	var phrases []string

	emit := func(run []string) {
		if len(run) < minPhraseWords || len(phrases) == MaxKeyPhrases {
			return
		}
		if len(run) > maxPhraseWords {
			run = run[:maxPhraseWords]
		}
		phrase := strings.Join(run, " ")
		if _, dup := seen[phrase]; dup {
			return
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}

	for _, sent := range sents {
		var run []string
		var word strings.Builder

		flushWord := func() {
			if word.Len() == 0 {
				return
			}
			w := word.String()
			word.Reset()
			if utf8.RuneCountInString(w) < minTokenRunes || isStopword(w) {
				emit(run)
				run = nil
				return
			}
			run = append(run, w)
		}

		for _, r := range sent {
			switch {
			case unicode.IsLetter(r) || unicode.IsDigit(r):
				word.WriteRune(r)
			case unicode.IsSpace(r):
				flushWord()
			default:
				flushWord()
				emit(run)
				run = nil
			}
		}
		flushWord()
		emit(run)
	}

	return phrases
}

// fallbackPhrases returns the unique long tokens used when no phrase was found
func fallbackPhrases(tokens []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tokens {
		if len(out) == MaxKeyPhrases {
			break
		}
		if utf8.RuneCountInString(t) < minFallbackRunes {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
