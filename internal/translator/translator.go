package translator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrTranslationFailed is returned once every attempt produced an error or an empty caption.
var ErrTranslationFailed = errors.New("translation failed")

// legacyFailureMarker is the sentinel text older generator wrappers return instead of an error.
const legacyFailureMarker = "translation failed"

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator converts cleaned channel text into a Malay caption with bounded retries.
type Translator struct {
	gen      Generator
	attempts int
	delay    time.Duration
}

// New creates a Translator. attempts below 1 is treated as 1.
func New(gen Generator, attempts int, delay time.Duration) *Translator {
	if attempts < 1 {
		attempts = 1
	}
	return &Translator{gen: gen, attempts: attempts, delay: delay}
}

// Translate returns the caption for text, or an error wrapping ErrTranslationFailed.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	prompt := BuildPrompt(text)

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		out, err := t.gen.Generate(ctx, prompt)
		switch {
		case err != nil:
			lastErr = err
		case strings.EqualFold(strings.TrimSpace(out), legacyFailureMarker):
			lastErr = errors.New("generator reported failure")
		default:
			if result := PostProcess(out); result != "" {
				return result, nil
			}
			lastErr = errors.New("empty response")
		}
		log.Printf("[Translate] Attempt %d/%d failed: %v", attempt, t.attempts, lastErr)

		if attempt == t.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTranslationFailed, ctx.Err())
		case <-time.After(t.delay):
		}
	}
	return "", fmt.Errorf("%w after %d attempt(s): %v", ErrTranslationFailed, t.attempts, lastErr)
}
