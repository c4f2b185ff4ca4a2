package format

import (
	"fmt"
	"strings"
	"testing"

	"transcription-service/internal/transcribe"
)

func wordSegment(start float64, words ...string) transcribe.Segment {
	seg := transcribe.Segment{Start: start, Text: strings.Join(words, " ")}
	t := start
	for _, w := range words {
		seg.Words = append(seg.Words, transcribe.Word{Start: t, End: t + 0.5, Text: w})
		t += 0.5
	}
	seg.End = t
	return seg
}

func TestTranscriptLineCount(t *testing.T) {
	for _, tc := range []struct {
		words        int
		wordsPerLine int
		wantLines    int
	}{
		{0, 8, 0},
		{1, 8, 1},
		{8, 8, 1},
		{9, 8, 2},
		{24, 8, 3},
		{25, 8, 4},
		{5, 2, 3},
	} {
		words := make([]string, tc.words)
		for i := range words {
			words[i] = fmt.Sprintf("w%d", i)
		}
		var segments []transcribe.Segment
		if tc.words > 0 {
			segments = []transcribe.Segment{wordSegment(0, words...)}
		}

		out := Transcript(segments, tc.wordsPerLine, false)
		var lines []string
		if out != "" {
			lines = strings.Split(out, "\n")
		}
		if len(lines) != tc.wantLines {
			t.Fatalf("words=%d wpl=%d: expected %d lines, got %d (%q)", tc.words, tc.wordsPerLine, tc.wantLines, len(lines), out)
		}
		for _, line := range lines {
			if n := len(strings.Fields(line)); n > tc.wordsPerLine {
				t.Fatalf("line %q has %d words, limit %d", line, n, tc.wordsPerLine)
			}
		}
	}
}

func TestTranscriptPreservesOrder(t *testing.T) {
	out := Transcript([]transcribe.Segment{wordSegment(0, "a", "b", "c", "d", "e")}, 2, false)
	joined := strings.Join(strings.Fields(strings.ReplaceAll(out, "\n", " ")), " ")
	if joined != "a b c d e" {
		t.Fatalf("word order broken: %q", joined)
	}
}

func TestTranscriptSRTBlocks(t *testing.T) {
	segments := []transcribe.Segment{wordSegment(0, "one", "two", "three", "four")}
	out := Transcript(segments, 2, true)

	lines := strings.Split(out, "\n")
	// Two blocks of 4 lines each: seq, range, text, blank.
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "0" || lines[4] != "1" {
		t.Fatalf("sequence numbers wrong: %q %q", lines[0], lines[4])
	}
	if lines[1] != "00:00:00,000 --> 00:00:01,000" {
		t.Fatalf("unexpected first range: %q", lines[1])
	}
	if lines[2] != "one two" || lines[6] != "three four" {
		t.Fatalf("unexpected text lines: %q %q", lines[2], lines[6])
	}
	if lines[3] != "" || lines[7] != "" {
		t.Fatalf("expected blank separators")
	}
}

func TestTranscriptTimestampVariantSameText(t *testing.T) {
	segments := []transcribe.Segment{
		wordSegment(0, "alpha", "beta", "gamma"),
		wordSegment(5, "delta", "epsilon"),
	}

	plain := Transcript(segments, 2, false)

	var stripped []string
	for _, line := range strings.Split(Transcript(segments, 2, true), "\n") {
		if line == "" {
			continue
		}
		if _, err := fmt.Sscanf(line, "%d", new(int)); err == nil && !strings.Contains(line, " ") {
			continue
		}
		if strings.Contains(line, "-->") {
			continue
		}
		stripped = append(stripped, line)
	}

	if got := strings.Join(stripped, "\n"); got != plain {
		t.Fatalf("text content differs:\nplain=%q\nstripped=%q", plain, got)
	}
}

func TestTranscriptFallbackSynthesizesWordTimes(t *testing.T) {
	// 4 words over 0..8s, 2 per line: first line ends at 4s, second at 8s.
	segments := []transcribe.Segment{{Start: 0, End: 8, Text: "a b c d"}}
	out := Transcript(segments, 2, true)

	if !strings.Contains(out, "00:00:00,000 --> 00:00:04,000") {
		t.Fatalf("first line range not synthesized evenly: %q", out)
	}
	if !strings.Contains(out, "00:00:04,000 --> 00:00:08,000") {
		t.Fatalf("second line range not synthesized evenly: %q", out)
	}
}

func TestTranscriptSkipsWhitespaceSegments(t *testing.T) {
	segments := []transcribe.Segment{
		wordSegment(0, "a", "b"),
		{Start: 1, End: 2, Text: "   "},
		{Start: 2, End: 3, Text: ""},
		wordSegment(3, "c", "d"),
	}
	out := Transcript(segments, 4, false)
	if out != "a b c d" {
		t.Fatalf("whitespace segments disturbed the buffer: %q", out)
	}
}

func TestTranscriptEmptyInput(t *testing.T) {
	if out := Transcript(nil, 8, true); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestSRTTimestamp(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.25, "00:01:01,250"},
		{3661.5, "01:01:01,500"},
		{-4, "00:00:00,000"},
	} {
		if got := SRTTimestamp(tc.in); got != tc.want {
			t.Fatalf("SRTTimestamp(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClock(t *testing.T) {
	if got := Clock(3725); got != "01:02:05" {
		t.Fatalf("Clock(3725) = %q", got)
	}
}
