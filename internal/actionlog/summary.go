package actionlog

import (
	"fmt"
	"sort"
	"strings"
)

// TypeCount is the number of entries of one type.
type TypeCount struct {
	Type  ActionType
	Count int
}

// Line is one entry as it appears in a report.
type Line struct {
	Type        ActionType
	Description string
	Details     string // "k=v, k=v" with sorted keys
}

// Report summarizes a dry run. It never includes timestamps, so two
// reports over the same entries are identical.
type Report struct {
	Total          int
	Counts         []TypeCount // non-zero counts in Types order
	Lines          []Line
	TokensSpent    int
	FilesModified  int
	WouldWrite     int // FileWrite + FileDelete entries
	WouldCallModel int // AICall entries
}

// Summarize groups and counts the recorded entries.
func (l *Log) Summarize() Report {
	entries := l.Entries()

	byType := make(map[ActionType]int, len(Types))
	r := Report{Total: len(entries), Lines: make([]Line, 0, len(entries))}
	for _, e := range entries {
		byType[e.Type]++
		r.Lines = append(r.Lines, Line{
			Type:        e.Type,
			Description: e.Description,
			Details:     formatDetails(e.Details),
		})
	}

	for _, t := range Types {
		if n := byType[t]; n > 0 {
			r.Counts = append(r.Counts, TypeCount{Type: t, Count: n})
		}
	}

	r.WouldCallModel = byType[AICall]
	r.WouldWrite = byType[FileWrite] + byType[FileDelete]
	return r
}

// Count returns the number of entries of type t.
func (r Report) Count(t ActionType) int {
	for _, c := range r.Counts {
		if c.Type == t {
			return c.Count
		}
	}
	return 0
}

// String renders the report as plain text.
func (r Report) String() string {
	var sb strings.Builder

	sb.WriteString("Dry run summary\n")
	fmt.Fprintf(&sb, "Total Actions: %d\n", r.Total)

	if len(r.Counts) > 0 {
		sb.WriteString("\nBy type:\n")
		for _, c := range r.Counts {
			fmt.Fprintf(&sb, "  %-10s %d\n", c.Type.String()+":", c.Count)
		}
	}

	if len(r.Lines) > 0 {
		sb.WriteString("\nActions:\n")
		for i, line := range r.Lines {
			fmt.Fprintf(&sb, "  %3d. [%s] %s", i+1, line.Type, line.Description)
			if line.Details != "" {
				fmt.Fprintf(&sb, " (%s)", line.Details)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nCost:\n")
	fmt.Fprintf(&sb, "  %d tokens spent\n", r.TokensSpent)
	fmt.Fprintf(&sb, "  %d files modified\n", r.FilesModified)
	fmt.Fprintf(&sb, "  would have made %d assistant call(s) and %d file change(s)\n", r.WouldCallModel, r.WouldWrite)

	return sb.String()
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + details[k]
	}
	return strings.Join(parts, ", ")
}
