// Package diff renders a unified diff between a diff-target file and the
// model's response, used as the in-terminal fallback when no external
// diff tool is configured.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// op is a single line-level operation. oldLine and newLine are the
// 0-based positions the operation applies at in each file.
type op struct {
	kind    opKind
	oldLine int
	newLine int
	text    string
}

// Unified computes a unified-format diff of oldContent against
// newContent with three lines of context. Identical inputs produce an
// empty string.
func Unified(oldPath, newPath, oldContent, newContent string) string {
	ops := lineOps(oldContent, newContent)

	hunks := groupHunks(ops)
	if len(hunks) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n", oldPath)
	fmt.Fprintf(&sb, "+++ %s\n", newPath)
	for _, h := range hunks {
		renderHunk(&sb, ops, h)
	}
	return sb.String()
}

// lineOps runs a line-level diff and flattens it into per-line
// operations.
func lineOps(oldContent, newContent string) []op {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []op
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, op{opEqual, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, op{opDelete, oldLine, newLine, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, op{opInsert, oldLine, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

// splitLines splits diff text into lines, dropping the empty tail that a
// trailing newline produces.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// hunk is a half-open index range into the op slice.
type hunk struct {
	start, end int
}

// groupHunks finds ranges of ops around changes, padded with context and
// merged when their context overlaps.
func groupHunks(ops []op) []hunk {
	var hunks []hunk
	cur := hunk{start: -1}

	for i, o := range ops {
		if o.kind == opEqual {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(ops) {
			end = len(ops)
		}
		if cur.start < 0 {
			cur = hunk{start, end}
			continue
		}
		if start <= cur.end {
			cur.end = end
			continue
		}
		hunks = append(hunks, cur)
		cur = hunk{start, end}
	}
	if cur.start >= 0 {
		hunks = append(hunks, cur)
	}
	return hunks
}

func renderHunk(sb *strings.Builder, ops []op, h hunk) {
	oldCount, newCount := 0, 0
	for _, o := range ops[h.start:h.end] {
		if o.kind != opInsert {
			oldCount++
		}
		if o.kind != opDelete {
			newCount++
		}
	}

	first := ops[h.start]
	oldStart := first.oldLine + 1
	if oldCount == 0 {
		oldStart = first.oldLine
	}
	newStart := first.newLine + 1
	if newCount == 0 {
		newStart = first.newLine
	}

	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	for _, o := range ops[h.start:h.end] {
		switch o.kind {
		case opEqual:
			fmt.Fprintf(sb, " %s\n", o.text)
		case opDelete:
			fmt.Fprintf(sb, "-%s\n", o.text)
		case opInsert:
			fmt.Fprintf(sb, "+%s\n", o.text)
		}
	}
}
