package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBusy is returned when a document is selected while another is being scanned
	ErrBusy = errors.New("an extraction is already in progress")

	// ErrNotConfirmed is returned when clearing the history without confirmation
	ErrNotConfirmed = errors.New("clearing history requires confirmation")

	// ErrUnknownEntry is returned when opening a history entry that does not exist
	ErrUnknownEntry = errors.New("history entry not found")
)
