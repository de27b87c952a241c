package config

import "fmt"

// Error is a configuration error: fatal at startup, naming the
// offending section and option so an operator can fix their INI file
// without reading a stack trace.
type Error struct {
	Section string
	Option  string
	Reason  string
}

func (e *Error) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("config: [%s]: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("config: [%s] %s: %s", e.Section, e.Option, e.Reason)
}

func errMissingOption(section, option string) error {
	return &Error{Section: section, Option: option, Reason: "required option is missing"}
}

func errInvalidValue(section, option, reason string) error {
	return &Error{Section: section, Option: option, Reason: reason}
}
