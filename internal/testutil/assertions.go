package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogContains fails the test when none of the captured log lines
// contains every one of the given fragments.
func AssertLogContains(t *testing.T, buf *SafeBuffer, fragments ...string) {
	t.Helper()
	require.Positive(t, CountLogLines(buf, fragments...),
		"no log line contains all of %q\nlogs:\n%s", fragments, buf.String())
}

// CountLogLines returns how many captured lines contain every fragment.
func CountLogLines(buf *SafeBuffer, fragments ...string) int {
	n := 0
lines:
	for _, line := range strings.Split(buf.String(), "\n") {
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				continue lines
			}
		}
		if line != "" {
			n++
		}
	}
	return n
}
