package rooms

import "errors"

// Precondition failures surfaced to the command layer. These are never
// retried and never produce side effects on the platform.
var (
	ErrNotInVoice       = errors.New("requester is not in a voice channel")
	ErrNotTemporaryRoom = errors.New("channel is not a temporary room")
	ErrNotOwner         = errors.New("requester does not own this room")
	ErrTargetNotPresent = errors.New("target member is not in this room")
	ErrInvalidLimit     = errors.New("user limit must be between 0 and 99")
)
