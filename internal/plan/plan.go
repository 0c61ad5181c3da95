// Package plan reads the implementation plan the assistant maintains: a
// markdown file whose work items are checkbox list entries.
package plan

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Task is one checkbox item from the plan.
type Task struct {
	Description string
	Line        int  // 1-based line number in the plan file
	Done        bool // [x] items
	Simulated   bool // set when the task was handed out by a dry run
}

// Parse extracts every checkbox item from content in file order.
// Recognized markers are "- [ ]", "* [ ]", "+ [ ]" and their checked
// forms "[x]" / "[X]"; numbered items ("1. [ ]") are accepted too.
func Parse(content string) []Task {
	var tasks []Task
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		desc, done, ok := parseItem(scanner.Text())
		if !ok {
			continue
		}
		tasks = append(tasks, Task{Description: desc, Line: line, Done: done})
	}
	return tasks
}

func parseItem(raw string) (desc string, done bool, ok bool) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "- "), strings.HasPrefix(s, "* "), strings.HasPrefix(s, "+ "):
		s = s[2:]
	default:
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i+1 >= len(s) || s[i] != '.' || s[i+1] != ' ' {
			return "", false, false
		}
		s = s[i+2:]
	}

	s = strings.TrimLeft(s, " ")
	if len(s) < 3 || s[0] != '[' || s[2] != ']' {
		return "", false, false
	}
	switch s[1] {
	case ' ':
		done = false
	case 'x', 'X':
		done = true
	default:
		return "", false, false
	}

	desc = strings.TrimSpace(s[3:])
	if desc == "" {
		return "", false, false
	}
	return desc, done, true
}

// Pending returns the unchecked tasks in file order.
func Pending(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if !t.Done {
			out = append(out, t)
		}
	}
	return out
}

// Load parses the plan at path. A missing plan yields exists == false and
// no error.
func Load(fs afero.Fs, path string) (tasks []Task, exists bool, err error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(string(data)), true, nil
}

// NextTask returns the first unchecked task of the plan at path, or nil when
// the plan is missing or fully checked off.
func NextTask(fs afero.Fs, path string) (*Task, error) {
	tasks, _, err := Load(fs, path)
	if err != nil {
		return nil, err
	}
	pending := Pending(tasks)
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[0]
	return &next, nil
}
