// Package diff computes line-level changes between the backend copy of
// a game-data file and a local draft, using the sergi/go-diff engine.
package diff

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies one line of a diff.
type LineType int

const (
	LineContext LineType = iota // Unchanged line
	LineAdded                   // Only in the draft
	LineRemoved                 // Only in the server copy
)

// Line is a single diff line. OldNum is the 1-based line number in the
// server copy (0 for added lines); NewNum the 1-based number in the
// draft (0 for removed lines).
type Line struct {
	OldNum  int
	NewNum  int
	Content string
	Type    LineType
}

// Hunk is a contiguous group of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Result holds the full comparison for one game-data file.
type Result struct {
	Name    string
	Hunks   []Hunk
	Added   int
	Removed int
}

// Identical reports whether the draft matches the server copy.
func (r *Result) Identical() bool {
	return len(r.Hunks) == 0
}

// Unified renders the result in unified diff format for export and
// the draft review pane.
func (r *Result) Unified() string {
	if r.Identical() {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s (server)\n+++ %s (draft)\n", r.Name, r.Name)
	for _, hunk := range r.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				sb.WriteString("+")
			case LineRemoved:
				sb.WriteString("-")
			default:
				sb.WriteString(" ")
			}
			sb.WriteString(line.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// contextLines is how much unchanged context each hunk carries.
const contextLines = 3

// Engine computes diffs with a cache keyed on input content, so the
// draft review pane can re-render without recomputing.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a diff engine tuned for whole-file accuracy.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton for general use.
var DefaultEngine = NewEngine()

// Compare diffs the server copy of a file against a draft.
func (e *Engine) Compare(name, serverContent, draftContent string) *Result {
	key := cacheKey{oldHash: hash(serverContent), newHash: hash(draftContent)}
	if cached, ok := e.cache.Load(key); ok {
		if result, ok := cached.(*Result); ok {
			clone := *result
			clone.Name = name
			return &clone
		}
	}

	// Line-level reduction avoids newline boundary artifacts when
	// converting character diffs back to line ops.
	a, b, lineArray := e.dmp.DiffLinesToChars(serverContent, draftContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	result := &Result{Name: name}
	ops := lineOps(diffs)
	result.Hunks = groupHunks(ops, contextLines)
	for _, op := range ops {
		switch op.Type {
		case LineAdded:
			result.Added++
		case LineRemoved:
			result.Removed++
		}
	}

	e.cache.Store(key, result)
	return result
}

// Compare is a convenience function using the default engine.
func Compare(name, serverContent, draftContent string) *Result {
	return DefaultEngine.Compare(name, serverContent, draftContent)
}

// ClearCache drops all cached results.
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}

// lineOps flattens diffmatchpatch output into numbered line
// operations.
func lineOps(diffs []diffmatchpatch.Diff) []Line {
	var ops []Line
	oldNum, newNum := 1, 1

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		// Split leaves a trailing empty element for text ending in \n
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, Line{OldNum: oldNum, NewNum: newNum, Content: line, Type: LineContext})
				oldNum++
				newNum++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, Line{OldNum: oldNum, Content: line, Type: LineRemoved})
				oldNum++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, Line{NewNum: newNum, Content: line, Type: LineAdded})
				newNum++
			}
		}
	}

	return ops
}

// groupHunks slices line operations into hunks. Changes separated by
// more than 2*context unchanged lines land in separate hunks.
func groupHunks(ops []Line, context int) []Hunk {
	var hunks []Hunk
	n := len(ops)
	i := 0

	for i < n {
		if ops[i].Type == LineContext {
			i++
			continue
		}

		start := i - context
		if start < 0 {
			start = 0
		}

		// Extend through nearby changes
		end := i
		gap := 0
		for j := i + 1; j < n; j++ {
			if ops[j].Type != LineContext {
				end = j
				gap = 0
			} else {
				gap++
				if gap > context*2 {
					break
				}
			}
		}

		stop := end + context + 1
		if stop > n {
			stop = n
		}

		hunk := Hunk{Lines: append([]Line(nil), ops[start:stop]...)}
		fillHunkHeader(&hunk)
		hunks = append(hunks, hunk)

		i = stop
	}

	return hunks
}

// fillHunkHeader derives the unified-diff header numbers from the
// hunk's lines.
func fillHunkHeader(hunk *Hunk) {
	for _, line := range hunk.Lines {
		if hunk.OldStart == 0 && line.OldNum > 0 {
			hunk.OldStart = line.OldNum
		}
		if hunk.NewStart == 0 && line.NewNum > 0 {
			hunk.NewStart = line.NewNum
		}
		if line.Type == LineRemoved || line.Type == LineContext {
			hunk.OldCount++
		}
		if line.Type == LineAdded || line.Type == LineContext {
			hunk.NewCount++
		}
	}
}

// hash computes an FNV-1a hash for the result cache.
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
