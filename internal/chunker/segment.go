package chunker

import "strings"

// Chunk is an ordered fragment of a source text holding at most the
// requested number of words.
type Chunk struct {
	Index int
	Text  string
}

// Segment splits text on whitespace into chunks of at most maxWords words.
// The last chunk may be shorter. Empty input yields no chunks. A
// non-positive maxWords puts every word in a single chunk.
func Segment(text string, maxWords int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 || maxWords > len(words) {
		maxWords = len(words)
	}

	chunks := make([]Chunk, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  strings.Join(words[start:end], " "),
		})
	}
	return chunks
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Join concatenates chunk texts with sep, preserving chunk order.
func Join(chunks []Chunk, sep string) string {
	return strings.Join(Texts(chunks), sep)
}
