package recovery

import "fmt"

// Choice is the user's answer to a recovery prompt.
type Choice int

const (
	ChoiceResume Choice = iota
	ChoiceRestart
	ChoiceCancel
)

func (c Choice) String() string {
	switch c {
	case ChoiceResume:
		return "resume"
	case ChoiceRestart:
		return "restart"
	case ChoiceCancel:
		return "cancel"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// Prompter asks the user to pick one of options for the checkpoint
// described by info.
type Prompter interface {
	Choose(info Info, options []Choice) (Choice, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(info Info, options []Choice) (Choice, error)

// Choose calls f.
func (f PrompterFunc) Choose(info Info, options []Choice) (Choice, error) {
	return f(info, options)
}

// ResumeOptions are offered for every resumable checkpoint.
var ResumeOptions = []Choice{ChoiceResume, ChoiceRestart, ChoiceCancel}

// Prompt decides how to proceed with the checkpoint described by info. An
// unresumable checkpoint leaves restart as the only option, so p is not
// asked.
func (o *Orchestrator) Prompt(info Info, p Prompter) (Choice, error) {
	if !info.CanResume {
		o.logger.Info("checkpoint cannot be resumed", "phase", info.StoredPhase, "summary", info.Summary)
		return ChoiceRestart, nil
	}
	if p == nil {
		return ChoiceCancel, fmt.Errorf("no prompter available")
	}

	choice, err := p.Choose(info, ResumeOptions)
	if err != nil {
		return ChoiceCancel, fmt.Errorf("failed to read recovery choice: %w", err)
	}
	for _, offered := range ResumeOptions {
		if choice == offered {
			return choice, nil
		}
	}
	return ChoiceCancel, fmt.Errorf("invalid recovery choice: %s", choice)
}
