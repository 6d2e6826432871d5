package ioutil

import (
	"fmt"
	"io"
	"strings"
)

// Snippet returns at most limit bytes of r, trimmed, for use in error
// messages. A longer body is cut and marked with "...".
func Snippet(r io.Reader, limit int) string {
	body, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	if len(body) > limit {
		return strings.TrimSpace(string(body[:limit])) + "..."
	}
	return strings.TrimSpace(string(body))
}
