// internal/cli/ui.go
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
)

// ErrCancelled is returned when the applicant interrupts a prompt.
var ErrCancelled = errors.New("cancelled")

// Option is one entry of a Select prompt.
type Option struct {
	Value string
	Label string
}

// Prompter asks the applicant for input. Commands take it as a dependency so
// tests can script the answers.
type Prompter interface {
	Input(label, def string, validate func(string) error) (string, error)
	Select(label string, options []Option) (Option, error)
	Confirm(label string, defaultYes bool) (bool, error)
}

type terminalPrompter struct {
	out io.Writer
}

// NewTerminalPrompter returns the promptui-backed Prompter.
func NewTerminalPrompter(out io.Writer) Prompter {
	return &terminalPrompter{out: out}
}

func (p *terminalPrompter) Input(label, def string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: def != "",
	}
	if validate != nil {
		prompt.Validate = promptui.ValidateFunc(validate)
	}

	res, err := prompt.Run()
	return res, mapPromptError(err)
}

func (p *terminalPrompter) Select(label string, options []Option) (Option, error) {
	if len(options) == 0 {
		return Option{}, fmt.Errorf("no options for %q", label)
	}
	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = o.Label
	}

	sel := promptui.Select{
		Label: label,
		Items: labels,
		Size:  8,
	}
	i, _, err := sel.Run()
	if err != nil {
		return Option{}, mapPromptError(err)
	}
	return options[i], nil
}

func (p *terminalPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		prompt.Default = "y"
	}

	res, err := prompt.Run()
	if err != nil {
		// promptui reports "no" as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, mapPromptError(err)
	}
	if res == "" {
		return defaultYes, nil
	}
	return res == "y" || res == "Y", nil
}

func mapPromptError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return err
}
