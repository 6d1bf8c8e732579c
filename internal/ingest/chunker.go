package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Section is one heading-delimited piece of a document.
type Section struct {
	Heading string
	Text    string
}

// SplitByHeading cuts markdown-ish text on '#' heading lines, carrying the
// current heading into each section. A section that grows past maxChars is
// flushed early under the same heading, so section order and count are a
// pure function of the input text.
func SplitByHeading(text string, maxChars int) []Section {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var sections []Section
	var heading string
	var current []string
	size := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			sections = append(sections, Section{Heading: heading, Text: body})
		}
		current = nil
		size = 0
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(line, "#"))
			continue
		}
		current = append(current, line)
		size += len(line)
		if size >= maxChars {
			flush()
		}
	}
	flush()

	return sections
}

// HashText is the content fingerprint used for both whole documents and
// individual chunks.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
