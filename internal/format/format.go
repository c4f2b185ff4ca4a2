// Package format renders timed transcription segments into line-wrapped
// transcripts, optionally as SRT-style subtitle blocks.
package format

import (
	"fmt"
	"strings"

	"transcription-service/internal/transcribe"
)

// Transcript folds an ordered sequence of segments into a transcript with at
// most wordsPerLine words per line. With includeTimestamps each flushed line
// becomes one SRT caption block (sequence number, "start --> end" range, text,
// blank separator); otherwise plain newline-joined lines are produced.
//
// Segments without word-level timing fall back to synthesizing per-word
// timestamps by dividing the segment duration evenly across its words.
// Whitespace-only segments are skipped without disturbing the current line.
func Transcript(segments []transcribe.Segment, wordsPerLine int, includeTimestamps bool) string {
	if wordsPerLine <= 0 {
		wordsPerLine = 1
	}

	var (
		lines     []string
		lineWords []string
		lineStart float64
		lineEnd   float64
		started   bool
		seq       int
	)

	flush := func() {
		text := strings.Join(lineWords, " ")
		if includeTimestamps {
			lines = append(lines,
				fmt.Sprintf("%d", seq),
				fmt.Sprintf("%s --> %s", SRTTimestamp(lineStart), SRTTimestamp(lineEnd)),
				text,
				"")
			seq++
		} else {
			lines = append(lines, text)
		}
		lineWords = lineWords[:0]
		started = false
	}

	for _, seg := range segments {
		if len(seg.Words) > 0 {
			for _, w := range seg.Words {
				text := strings.TrimSpace(w.Text)
				if text == "" {
					continue
				}
				if !started {
					lineStart = w.Start
					started = true
				}
				lineEnd = w.End
				lineWords = append(lineWords, text)
				if len(lineWords) >= wordsPerLine {
					flush()
				}
			}
			continue
		}

		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		wordDuration := (seg.End - seg.Start) / float64(len(words))
		for i, word := range words {
			if !started {
				lineStart = seg.Start
				started = true
			}
			lineEnd = seg.Start + float64(i+1)*wordDuration
			lineWords = append(lineWords, word)
			if len(lineWords) >= wordsPerLine {
				flush()
			}
		}
	}

	if len(lineWords) > 0 {
		flush()
	}

	return strings.Join(lines, "\n")
}

// SRTTimestamp renders seconds as HH:MM:SS,mmm with the comma decimal
// separator used by the SRT subtitle format.
func SRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// Clock renders seconds as HH:MM:SS for progress messages.
func Clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
