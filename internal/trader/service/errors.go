package service

import "errors"

var (
	// ErrIllegalTransition marks a state-machine move not permitted from the
	// current state. It is always rejected before any mutation or event.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrConfigurationMissing marks a required registry parameter that is
	// absent. Fatal to the orchestration run for that signal.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrOrderNotTerminal is returned when an operation requires the order
	// to have reached a terminal status first.
	ErrOrderNotTerminal = errors.New("order not in terminal status")
)
