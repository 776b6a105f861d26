package chunker

import "strings"

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens gives a rough token count for English text.
// Exact tokenization is not required for budgeting prompts.
func EstimateTokens(text string) int {
	words := WordCount(text)
	if words == 0 {
		return 0
	}
	// Roughly 0.75 words per token.
	tokens := words * 133 / 100
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// WordsForTokens converts a token budget into an approximate word budget.
func WordsForTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	words := tokens * 100 / 133
	if words < 1 {
		words = 1
	}
	return words
}

// TokensForWords converts a word budget into an approximate token budget.
func TokensForWords(words int) int {
	if words <= 0 {
		return 0
	}
	return max(words*133/100, 1)
}
