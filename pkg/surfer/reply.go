package surfer

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/harun/websurfer/pkg/agent"
)

const replySeparator = "\n=======================\n"

var lineBreakRe = regexp.MustCompile(`[\r\n]+`)

// formatReply joins a state header and a body into one tool reply
func formatReply(header, body string) string {
	return strings.TrimSpace(header) + replySeparator + body
}

// browserState renders the header for the session's current page and
// returns it with the visible viewport text.
func browserState(s Session, now time.Time) (header, viewport string) {
	var b strings.Builder

	address := s.Address()
	fmt.Fprintf(&b, "Address: %s\n", address)
	if title, ok := s.Title(); ok {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}

	// The last entry is the current visit
	history := s.History()
	for i := len(history) - 2; i >= 0; i-- {
		if history[i].Address == address {
			seconds := math.RoundToEven(now.Sub(history[i].Time).Seconds())
			fmt.Fprintf(&b, "You previously visited this page %d seconds ago.\n", int64(seconds))
			break
		}
	}

	fmt.Fprintf(&b, "Viewport position: Showing page %d of %d.\n", s.CurrentPage()+1, s.PageCount())
	return b.String(), s.Viewport()
}

// reminder tells the planner where the browser is. A missing title is
// rendered empty.
func reminder(s Session) string {
	title, _ := s.Title()
	return fmt.Sprintf("Your browser is currently open to the page '%s' at the address '%s'.", title, s.Address())
}

// splitLines splits text into lines and the line-break runs between them,
// so that concatenating the parts gives back text.
func splitLines(text string) []string {
	var parts []string
	last := 0
	for _, loc := range lineBreakRe.FindAllStringIndex(text, -1) {
		parts = append(parts, text[last:loc[0]], text[loc[0]:loc[1]])
		last = loc[1]
	}
	return append(parts, text[last:])
}

// summaryBuffer takes whole lines from the start of content while the
// estimated tokens plus headroom stay within limit.
func summaryBuffer(content string, limit, headroom int) string {
	var b strings.Builder
	for _, part := range splitLines(content) {
		if agent.EstimateLengthTokens(b.Len()+len(part))+headroom > limit {
			break
		}
		b.WriteString(part)
	}
	return strings.TrimSpace(b.String())
}
