package format

import (
	"fmt"
	"strings"

	"tradecast/internal/types"
)

const (
	// MaxSegmentLength is the hard cap per published segment.
	MaxSegmentLength = 280
	threadMarker     = " 🧵"
	// markerSpace reserves room for the thread suffix added after
	// splitting, e.g. " 🧵 (1/10)".
	markerSpace = 10
)

// Split breaks a message into publishable segments on line boundaries,
// appending thread markers when more than one segment results. A
// message that already fits is returned as its single segment.
func Split(msg types.Message) []types.Message {
	lines := strings.Split(msg.Content, "\n")
	available := MaxSegmentLength - markerSpace

	var chunks []string
	var current []string
	currentLen := 0

	for _, line := range lines {
		lineLen := len([]rune(line))
		if len(current) > 0 {
			lineLen++ // joining newline
		}
		if currentLen+lineLen <= available {
			current = append(current, line)
			currentLen += lineLen
			continue
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
		}
		current = []string{line}
		currentLen = len([]rune(line))
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	total := len(chunks)
	out := make([]types.Message, 0, total)
	for i, content := range chunks {
		if total > 1 {
			if i == 0 {
				content += fmt.Sprintf("%s (1/%d)", threadMarker, total)
			} else {
				content += fmt.Sprintf(" (%d/%d)", i+1, total)
			}
		}
		segment := types.NewMessage(content, msg.Timestamp, map[string]any{
			"part":  i + 1,
			"total": total,
		})
		for k, v := range msg.Metadata {
			segment.Metadata[k] = v
		}
		out = append(out, segment)
	}
	return out
}
