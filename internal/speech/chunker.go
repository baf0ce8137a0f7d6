package speech

import (
	"regexp"
	"strings"
)

// ResponseUnit is one speakable chunk of a generated response. Indices are
// zero-based, strictly increasing, and contiguous; ordering is preserved all
// the way to audio delivery.
type ResponseUnit struct {
	Index   uint32
	Text    string
	IsFirst bool
	IsLast  bool
}

const (
	stopMarker = "<STOP>"
	prdMarker  = "<prd>"
	elpMarker  = "<ellip>"
)

// Sentence boundary protection, compiled once. The dot after common
// abbreviations, inside acronyms, decimals, and web domains is not a
// sentence end.
var (
	rePrefixes = regexp.MustCompile(`(Mr|St|Mrs|Ms|Dr|Prof|Capt|Cpt|Lt|Mt|Inc|Ltd|Jr|Sr|Co|Corp)[.]`)
	reWebsites = regexp.MustCompile(`[.](com|net|org|io|gov|edu|me|co|uk|ca|de|jp|fr|au|us|ru|ch|it|nl|se|no|es|mil)\b`)
	reDecimals = regexp.MustCompile(`([0-9])[.]([0-9])`)
	reAcronyms = regexp.MustCompile(`[A-Z][.][A-Z][.](?:[A-Z][.])?`)
	reEllipsis = regexp.MustCompile(`\.{3}`)
	reStops    = regexp.MustCompile(`([.!?。！？])(["”’']*)`)
)

// Chunker splits response text into ordered speakable units. Units shorter
// than MinUnitChars are merged forward so TTS output does not sound clipped;
// the trailing remainder is always emitted however short it is.
type Chunker struct {
	// MinUnitChars is the minimum unit length in characters (default 20).
	MinUnitChars int
}

// NewChunker returns a chunker with the given minimum unit length.
func NewChunker(minUnitChars int) *Chunker {
	if minUnitChars <= 0 {
		minUnitChars = 20
	}
	return &Chunker{MinUnitChars: minUnitChars}
}

// Chunk splits text into response units. Text with no terminal punctuation
// at all becomes a single unit. Empty input yields no units.
func (c *Chunker) Chunk(text string) []ResponseUnit {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	merged := make([]string, 0, len(sentences))
	buffer := ""
	for _, s := range sentences {
		if s == "" {
			continue
		}
		if buffer == "" {
			buffer = s
		} else {
			buffer = buffer + " " + s
		}
		if len(buffer) >= c.MinUnitChars {
			merged = append(merged, buffer)
			buffer = ""
		}
	}
	if buffer != "" {
		merged = append(merged, buffer)
	}
	if len(merged) == 0 {
		return nil
	}

	units := make([]ResponseUnit, len(merged))
	for i, s := range merged {
		units[i] = ResponseUnit{Index: uint32(i), Text: s}
	}
	units[0].IsFirst = true
	units[len(units)-1].IsLast = true
	return units
}

// splitSentences marks real sentence boundaries and splits on them.
func splitSentences(text string) []string {
	t := rePrefixes.ReplaceAllString(text, "${1}"+prdMarker)
	t = reWebsites.ReplaceAllString(t, prdMarker+"${1}")
	t = reDecimals.ReplaceAllString(t, "${1}"+prdMarker+"${2}")
	t = reAcronyms.ReplaceAllStringFunc(t, func(m string) string {
		return strings.ReplaceAll(m, ".", prdMarker)
	})
	t = reEllipsis.ReplaceAllString(t, elpMarker)
	t = reStops.ReplaceAllString(t, "${1}${2}"+stopMarker)

	raw := strings.Split(t, stopMarker)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s := strings.ReplaceAll(r, prdMarker, ".")
		s = strings.ReplaceAll(s, elpMarker, "...")
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
