package linking

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// StopwordSet is an immutable set of lowercase words. The zero value is empty.
type StopwordSet struct {
	words map[string]struct{}
}

func NewStopwordSet(words ...string) StopwordSet {
	set := StopwordSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set.words[w] = struct{}{}
	}
	return set
}

// LoadStopwords reads one word per line. Blank lines and lines starting with
// '#' are skipped.
func LoadStopwords(r io.Reader) (StopwordSet, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return StopwordSet{}, fmt.Errorf("failed to read stopwords: %w", err)
	}
	return NewStopwordSet(words...), nil
}

func (s StopwordSet) Contains(word string) bool {
	_, ok := s.words[word]
	return ok
}

func (s StopwordSet) Len() int {
	return len(s.words)
}
