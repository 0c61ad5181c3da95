// Package assistant adapts the external AI coding assistant CLI: building
// its command line, running it, and reading its stream-json output.
package assistant

import (
	"strconv"

	"github.com/thruflo/loopsh/internal/config"
)

// Options holds the invocation settings shared by every call.
type Options struct {
	Command         string
	Model           string
	MaxTurns        int
	OutputFormat    string
	Verbose         bool // required by the CLI for stream-json with -p
	SkipPermissions bool
	ExtraArgs       []string
}

// OptionsFromConfig converts the assistant section of the config file.
func OptionsFromConfig(cfg config.Assistant) Options {
	return Options{
		Command:         cfg.Command,
		Model:           cfg.Model,
		MaxTurns:        cfg.MaxTurns,
		OutputFormat:    cfg.OutputFormat,
		Verbose:         cfg.Verbose,
		SkipPermissions: cfg.SkipPermissions,
		ExtraArgs:       cfg.ExtraArgs,
	}
}

// CallArgs carries the per-call settings that vary between invocations.
type CallArgs struct {
	Prompt    string
	Model     string // overrides Options.Model when set
	MaxTurns  int    // overrides Options.MaxTurns when positive
	SessionID string
	Resume    bool // continue SessionID instead of starting it
}

// BuildArgs constructs the argument list (without the command itself).
func (o Options) BuildArgs(call CallArgs) []string {
	args := []string{"-p", call.Prompt}

	if o.OutputFormat != "" {
		args = append(args, "--output-format", o.OutputFormat)
	}
	if o.Verbose {
		args = append(args, "--verbose")
	}

	model := o.Model
	if call.Model != "" {
		model = call.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	maxTurns := o.MaxTurns
	if call.MaxTurns > 0 {
		maxTurns = call.MaxTurns
	}
	if maxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(maxTurns))
	}

	if call.SessionID != "" {
		if call.Resume {
			args = append(args, "--resume", call.SessionID)
		} else {
			args = append(args, "--session-id", call.SessionID)
		}
	}

	if o.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	return append(args, o.ExtraArgs...)
}
