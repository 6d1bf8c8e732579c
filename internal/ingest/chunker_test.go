package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitByHeading(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Section
	}{
		{
			name:     "no_headings",
			input:    "plain text\nsecond line",
			expected: []Section{{Heading: "", Text: "plain text\nsecond line"}},
		},
		{
			name:  "headings_delimit_sections",
			input: "# Intro\nhello\n## Details\nworld\nmore",
			expected: []Section{
				{Heading: "Intro", Text: "hello"},
				{Heading: "Details", Text: "world\nmore"},
			},
		},
		{
			name:     "heading_only_document",
			input:    "# Lonely Heading\n",
			expected: nil,
		},
		{
			name:     "blank_sections_dropped",
			input:    "# A\n\n\n# B\nbody",
			expected: []Section{{Heading: "B", Text: "body"}},
		},
		{
			name:     "crlf_input",
			input:    "# A\r\nline one\r\nline two",
			expected: []Section{{Heading: "A", Text: "line one\nline two"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitByHeading(tt.input, 1200)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitByHeading = %#v, want %#v", got, tt.expected)
			}
		})
	}
}

func TestSplitByHeading_MaxCharsFlushesEarly(t *testing.T) {
	long := strings.Repeat("x", 700)
	input := "# Big\n" + long + "\n" + long + "\ntail"

	sections := SplitByHeading(input, 1200)
	if len(sections) != 2 {
		t.Fatalf("expected an early flush into 2 sections, got %d", len(sections))
	}
	for _, s := range sections {
		if s.Heading != "Big" {
			t.Errorf("overflow section must keep its heading, got %q", s.Heading)
		}
	}
	if sections[1].Text != "tail" {
		t.Errorf("expected trailing section %q, got %q", "tail", sections[1].Text)
	}
}

func TestSplitByHeading_Deterministic(t *testing.T) {
	input := "# A\nalpha\n# B\nbeta\ngamma"
	first := SplitByHeading(input, 1200)
	second := SplitByHeading(input, 1200)
	if !reflect.DeepEqual(first, second) {
		t.Error("same input must produce identical sections")
	}
}

func TestHashText(t *testing.T) {
	if HashText("a") == HashText("b") {
		t.Error("different text must hash differently")
	}
	if HashText("same") != HashText("same") {
		t.Error("hash must be stable")
	}
	if len(HashText("")) != 64 {
		t.Error("expected hex sha256")
	}
}
