// Package directive expands #import and #diff control lines inside a
// request body before it is sent to the model. A #diff line additionally
// marks its file as a diff target for the post-exchange comparison step.
package directive

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rashkov/gish/internal/pathutil"
)

// directiveRe matches one directive per line: optional leading
// whitespace, the keyword, whitespace, then a path token. Anything after
// the path is ignored, and a keyword appearing mid-line is not a
// directive.
var directiveRe = regexp.MustCompile(`^\s*#(import|diff)\s+([\w./\\~]+)`)

// Result is the outcome of one expansion pass. DiffTargets preserves the
// first-seen order of #diff lines, duplicates included. On failure, Text
// holds the user-visible error and DiffTargets whatever was collected
// before the failing line.
type Result struct {
	OK          bool
	Text        string
	DiffTargets []string
}

// Expand scans content line by line and splices referenced file contents
// in place of #import and #diff lines. Expansion is single level:
// directives inside an imported file are inserted verbatim, not expanded
// again. The first unreadable file aborts the whole pass; partial
// success is never reported as success.
func Expand(content string) Result {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	var diffTargets []string

	for _, line := range lines {
		m := directiveRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		keyword, path := m[1], pathutil.Normalize(m[2])
		if keyword == "diff" {
			diffTargets = append(diffTargets, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{
				Text:        fmt.Sprintf("#%s file %s was not found", keyword, path),
				DiffTargets: diffTargets,
			}
		}
		out = append(out, strings.Split(string(data), "\n")...)
	}

	return Result{OK: true, Text: strings.Join(out, "\n"), DiffTargets: diffTargets}
}
