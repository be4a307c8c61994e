package diff

import (
	"fmt"
	"strings"
	"testing"
)

func TestCompare_SimpleAddition(t *testing.T) {
	serverContent := "{\n  \"heroes\": [\n    \"molly\"\n  ]\n}"
	draftContent := "{\n  \"heroes\": [\n    \"molly\",\n    \"bahiti\"\n  ]\n}"

	engine := NewEngine()
	result := engine.Compare("heroes", serverContent, draftContent)

	if result.Identical() {
		t.Fatal("Expected changes, got identical")
	}
	if len(result.Hunks) != 1 {
		t.Errorf("Expected 1 hunk, got %d", len(result.Hunks))
	}

	hasAddition := false
	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			if line.Type == LineAdded && strings.Contains(line.Content, "bahiti") {
				hasAddition = true
			}
		}
	}
	if !hasAddition {
		t.Error("Expected to find the added hero line")
	}
}

func TestCompare_SimpleDeletion(t *testing.T) {
	serverContent := "alpha\nbeta\ngamma\ndelta"
	draftContent := "alpha\nbeta\ndelta"

	engine := NewEngine()
	result := engine.Compare("events", serverContent, draftContent)

	hasRemoval := false
	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			if line.Type == LineRemoved && line.Content == "gamma" {
				hasRemoval = true
			}
		}
	}
	if !hasRemoval {
		t.Error("Expected to find removed line 'gamma'")
	}
	if result.Removed != 1 {
		t.Errorf("Expected 1 removed line, got %d", result.Removed)
	}
}

func TestCompare_NoChanges(t *testing.T) {
	content := "line1\nline2\nline3"

	engine := NewEngine()
	result := engine.Compare("gear", content, content)

	if !result.Identical() {
		t.Errorf("Expected identical result, got %d hunks", len(result.Hunks))
	}
	if result.Unified() != "" {
		t.Error("Expected empty unified output for identical content")
	}
}

func TestCompare_LineNumbers(t *testing.T) {
	serverContent := "one\ntwo\nthree\nfour\nfive"
	draftContent := "one\ntwo\nCHANGED\nfour\nfive"

	engine := NewEngine()
	result := engine.Compare("gear", serverContent, draftContent)

	if len(result.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(result.Hunks))
	}
	hunk := result.Hunks[0]
	if hunk.OldStart != 1 || hunk.NewStart != 1 {
		t.Errorf("Expected hunk to start at line 1, got -%d +%d", hunk.OldStart, hunk.NewStart)
	}

	for _, line := range hunk.Lines {
		switch {
		case line.Type == LineRemoved && line.Content == "three":
			if line.OldNum != 3 {
				t.Errorf("Expected removed line at old line 3, got %d", line.OldNum)
			}
			if line.NewNum != 0 {
				t.Errorf("Removed line should have no new number, got %d", line.NewNum)
			}
		case line.Type == LineAdded && line.Content == "CHANGED":
			if line.NewNum != 3 {
				t.Errorf("Expected added line at new line 3, got %d", line.NewNum)
			}
			if line.OldNum != 0 {
				t.Errorf("Added line should have no old number, got %d", line.OldNum)
			}
		}
	}
}

func TestCompare_MultipleHunks(t *testing.T) {
	var serverLines, draftLines []string
	for i := 1; i <= 30; i++ {
		serverLines = append(serverLines, fmt.Sprintf("line%d", i))
		draftLines = append(draftLines, fmt.Sprintf("line%d", i))
	}
	draftLines[2] = "CHANGED3"
	draftLines[27] = "CHANGED28"

	engine := NewEngine()
	result := engine.Compare("heroes", strings.Join(serverLines, "\n"), strings.Join(draftLines, "\n"))

	if len(result.Hunks) != 2 {
		t.Errorf("Expected 2 hunks for distant changes, got %d", len(result.Hunks))
	}
}

func TestCompare_ContextLines(t *testing.T) {
	serverContent := "line1\nline2\nline3\nline4\nline5"
	draftContent := "line1\nline2\nCHANGED\nline4\nline5"

	engine := NewEngine()
	result := engine.Compare("gear", serverContent, draftContent)

	if len(result.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(result.Hunks))
	}

	hasContext := false
	for _, line := range result.Hunks[0].Lines {
		if line.Type == LineContext {
			hasContext = true
			break
		}
	}
	if !hasContext {
		t.Error("Expected context lines in hunk")
	}
}

func TestCompare_HunkCounts(t *testing.T) {
	serverContent := "line1\nline2\nline3"
	draftContent := "line1\nNEW\nline3"

	engine := NewEngine()
	result := engine.Compare("gear", serverContent, draftContent)

	if len(result.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(result.Hunks))
	}
	hunk := result.Hunks[0]

	oldCount := 0
	newCount := 0
	for _, line := range hunk.Lines {
		if line.Type == LineRemoved || line.Type == LineContext {
			oldCount++
		}
		if line.Type == LineAdded || line.Type == LineContext {
			newCount++
		}
	}

	if hunk.OldCount != oldCount {
		t.Errorf("OldCount mismatch: expected %d, got %d", oldCount, hunk.OldCount)
	}
	if hunk.NewCount != newCount {
		t.Errorf("NewCount mismatch: expected %d, got %d", newCount, hunk.NewCount)
	}
}

func TestCompare_Caching(t *testing.T) {
	serverContent := "line1\nline2\nline3"
	draftContent := "line1\nline2\nline3\nline4"

	engine := NewEngine()

	first := engine.Compare("heroes", serverContent, draftContent)
	second := engine.Compare("gear", serverContent, draftContent)

	if len(first.Hunks) != len(second.Hunks) {
		t.Errorf("Cache should preserve hunk count: %d vs %d", len(first.Hunks), len(second.Hunks))
	}
	if second.Name != "gear" {
		t.Errorf("Cached result should carry the new name, got %q", second.Name)
	}

	engine.ClearCache()
	third := engine.Compare("heroes", serverContent, draftContent)
	if len(third.Hunks) != len(first.Hunks) {
		t.Error("Cache clearing should not affect diff computation")
	}
}

func TestUnifiedFormat(t *testing.T) {
	serverContent := "a\nb\nc"
	draftContent := "a\nX\nc"

	result := Compare("heroes", serverContent, draftContent)
	unified := result.Unified()

	if !strings.Contains(unified, "--- heroes (server)") {
		t.Errorf("Expected server header, got %q", unified)
	}
	if !strings.Contains(unified, "+++ heroes (draft)") {
		t.Errorf("Expected draft header, got %q", unified)
	}
	if !strings.Contains(unified, "@@ -1,3 +1,3 @@") {
		t.Errorf("Expected hunk header, got %q", unified)
	}
	if !strings.Contains(unified, "-b\n") || !strings.Contains(unified, "+X\n") {
		t.Errorf("Expected change lines, got %q", unified)
	}
}

func TestCompare_Stats(t *testing.T) {
	serverContent := "a\nb\nc"
	draftContent := "a\nB\nC\nd"

	result := Compare("gear", serverContent, draftContent)

	if result.Added != 3 {
		t.Errorf("Expected 3 added lines, got %d", result.Added)
	}
	if result.Removed != 2 {
		t.Errorf("Expected 2 removed lines, got %d", result.Removed)
	}
}

func BenchmarkCompare_Small(b *testing.B) {
	serverContent := "line1\nline2\nline3"
	draftContent := "line1\nCHANGED\nline3"
	engine := NewEngine()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Compare("heroes", serverContent, draftContent)
		engine.ClearCache()
	}
}

func BenchmarkCompare_Cached(b *testing.B) {
	serverContent := "line1\nline2\nline3"
	draftContent := "line1\nCHANGED\nline3"
	engine := NewEngine()
	engine.Compare("heroes", serverContent, draftContent)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Compare("heroes", serverContent, draftContent)
	}
}
