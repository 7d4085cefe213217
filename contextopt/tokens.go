package contextopt

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// cl100k_base covers the GPT-4 family and is close enough for
		// budget accounting against other providers.
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// EstimateTokens returns the token count of text. When the encoder cannot be
// initialized (no cached BPE data), it falls back to the chars/4 heuristic
// so budget enforcement still works offline.
func EstimateTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return fallbackEstimate(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func fallbackEstimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// truncateToTokens cuts text so its estimated token count is at most budget.
// Estimation-guided: it trims proportionally and re-measures until it fits,
// so it terminates even when the estimate is not linear in length.
func truncateToTokens(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	for EstimateTokens(text) > budget {
		keep := len(text) * budget / (EstimateTokens(text) + 1)
		if keep >= len(text) {
			keep = len(text) - 1
		}
		for keep > 0 && !utf8.RuneStart(text[keep]) {
			keep--
		}
		if keep <= 0 {
			return ""
		}
		text = text[:keep]
	}
	return text
}
