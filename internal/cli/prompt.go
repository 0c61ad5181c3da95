package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thruflo/loopsh/internal/recovery"
	"golang.org/x/term"
)

// stdinIsTerminal reports whether the recovery menu can be shown. It can be
// overridden in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptInput is where menu answers are read from. It can be overridden in
// tests.
var promptInput io.Reader = os.Stdin

// linePrompter asks for a recovery choice on a line-based reader.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{in: bufio.NewReader(in), out: out}
}

var choiceKeys = map[recovery.Choice]string{
	recovery.ChoiceResume:  "r",
	recovery.ChoiceRestart: "s",
	recovery.ChoiceCancel:  "c",
}

// Choose implements recovery.Prompter. An empty answer or end of input
// cancels.
func (p *linePrompter) Choose(_ recovery.Info, options []recovery.Choice) (recovery.Choice, error) {
	labels := make([]string, 0, len(options))
	keys := make([]string, 0, len(options))
	for _, o := range options {
		labels = append(labels, fmt.Sprintf("[%s] %s", choiceKeys[o], o))
		keys = append(keys, "["+choiceKeys[o]+"]")
	}
	fmt.Fprintf(p.out, "%s\n> ", strings.Join(labels, "  "))

	for {
		input, err := p.in.ReadString('\n')
		if err != nil && input == "" {
			return recovery.ChoiceCancel, nil
		}

		input = strings.TrimSpace(strings.ToLower(input))
		if input == "" {
			return recovery.ChoiceCancel, nil
		}
		for _, o := range options {
			if input == choiceKeys[o] || input == o.String() {
				return o, nil
			}
		}
		if err != nil {
			return recovery.ChoiceCancel, nil
		}
		fmt.Fprintf(p.out, "Invalid choice. Enter %s: ", strings.Join(keys, ", "))
	}
}
