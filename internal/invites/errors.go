package invites

import "errors"

// Domain errors surfaced by the invitation service. Callers branch on these
// to render precise responses; none of them indicates an infrastructure
// failure.
var (
	// ErrQuotaExhausted means the sender has no available invitations left.
	// Expected and recoverable, not an exceptional condition.
	ErrQuotaExhausted = errors.New("invitation quota exhausted")

	// ErrNotFound means no invitation exists for the given key.
	ErrNotFound = errors.New("invitation not found")

	// ErrExpired means the invitation's expiration horizon has passed.
	ErrExpired = errors.New("invitation expired")

	// ErrAlreadyAccepted means the invitation was redeemed before.
	ErrAlreadyAccepted = errors.New("invitation already accepted")

	// ErrAlreadyRequested means a pending invitation request exists for the email.
	ErrAlreadyRequested = errors.New("invitation already requested for this email")

	// ErrAlreadyInvited means a valid invitation is already outstanding for the email.
	ErrAlreadyInvited = errors.New("a valid invitation already exists for this email")

	// ErrAlreadyRegistered means an account already exists for the email.
	ErrAlreadyRegistered = errors.New("an account already exists for this email")

	// ErrInvalidArgument covers negative counts and non-positive batch sizes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownSender means the batch sender could not be resolved. Fatal
	// for the batch path: nothing is mutated.
	ErrUnknownSender = errors.New("unknown sender")
)
