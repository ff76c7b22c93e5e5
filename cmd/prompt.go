package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// SelectOption is one choice in a select prompt.
type SelectOption[T any] struct {
	Label string
	Value T
}

func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// promptString asks for one line of text. An empty answer returns defaultVal.
func promptString(title, description, defaultVal string) (string, error) {
	return promptValidated(title, description, defaultVal, nil)
}

// promptValidated is promptString with an inline check. validate sees the
// effective answer, so an empty input is checked as defaultVal.
func promptValidated(title, description, defaultVal string, validate func(string) error) (string, error) {
	var value string
	inp := huh.NewInput().Title(title).Value(&value)
	if description != "" {
		inp = inp.Description(description)
	}
	if defaultVal != "" {
		inp = inp.Placeholder(defaultVal)
	}
	if validate != nil {
		inp = inp.Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				s = defaultVal
			}
			return validate(s)
		})
	}

	if err := runForm(inp); err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return defaultVal, nil
	}
	return value, nil
}

// promptFloat asks for a number within [min, max].
func promptFloat(title, description string, defaultVal, min, max float64) (float64, error) {
	s, err := promptValidated(title, description, strconv.FormatFloat(defaultVal, 'f', -1, 64), func(s string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if f < min || f > max {
			return fmt.Errorf("must be between %v and %v", min, max)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// promptList asks for a comma-separated list. "-" clears it.
func promptList(title, description string, defaults []string) ([]string, error) {
	s, err := promptString(title, description, strings.Join(defaults, ", "))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "-" {
		return nil, nil
	}
	return splitList(s), nil
}

// promptPassword asks for a secret with hidden input.
func promptPassword(title, description string) (string, error) {
	var value string
	inp := huh.NewInput().Title(title).EchoMode(huh.EchoModePassword).Value(&value)
	if description != "" {
		inp = inp.Description(description)
	}
	if err := runForm(inp); err != nil {
		return "", err
	}
	return value, nil
}

// promptSelect shows a single-select list with options[defaultIdx] preselected.
func promptSelect[T comparable](title string, options []SelectOption[T], defaultIdx int) (T, error) {
	var value T
	opts := make([]huh.Option[T], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Value).Selected(i == defaultIdx)
	}
	sel := huh.NewSelect[T]().Title(title).Options(opts...).Value(&value)
	if err := runForm(sel); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// promptConfirm asks a yes/no question.
func promptConfirm(title string, defaultYes bool) (bool, error) {
	value := defaultYes
	c := huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&value)
	if err := runForm(c); err != nil {
		return false, err
	}
	return value, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
