package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Recursive splits text on the coarsest separator that keeps pieces under
// Size runes, recursing into finer separators for oversized pieces, then
// merges neighbouring pieces back up to Size with Overlap runes carried
// between consecutive chunks. Separators stay attached to the start of the
// piece that follows them.
type Recursive struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewRecursive(size, overlap int) *Recursive {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Recursive{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

func (r *Recursive) SplitText(text string) []string {
	seps := r.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return r.split(text, seps)
}

func (r *Recursive) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, s := range splitKeep(text, sep) {
		if runeLen(s) < r.Size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, r.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, r.split(s, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, r.merge(good)...)
	}
	return final
}

// merge greedily packs pieces into chunks of at most Size runes, keeping up
// to Overlap runes of trailing pieces as the head of the next chunk.
func (r *Recursive) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > r.Size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > r.Overlap || (total+n > r.Size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

func splitKeep(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, c := range text {
			parts = append(parts, string(c))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	parts = make([]string, 0, len(raw))
	if raw[0] != "" {
		parts = append(parts, raw[0])
	}
	for _, p := range raw[1:] {
		parts = append(parts, sep+p)
	}
	return parts
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
