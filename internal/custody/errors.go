package custody

import (
	"errors"
	"fmt"
)

// Category roots. Every failure returned by the registry wraps exactly one of
// these, so callers can classify with errors.Is without matching messages.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrInvalid      = errors.New("invalid argument")
	ErrNotFound     = errors.New("not found")
)

// Named failures that callers are expected to branch on.
var (
	ErrDuplicateOwner    = fmt.Errorf("%w: duplicate owner", ErrInvalid)
	ErrTooManyOwners     = fmt.Errorf("%w: an account supports at most %d owners", ErrInvalid, maxOwnersPerAccount)
	ErrOwnerLimit        = fmt.Errorf("%w: party already owns %d accounts", ErrInvalid, maxAccountsPerParty)
	ErrBadAmount         = fmt.Errorf("%w: amount must be positive", ErrInvalid)
	ErrInsufficientFunds = fmt.Errorf("%w: amount exceeds account balance", ErrInvalid)
	ErrAlreadyApproved   = fmt.Errorf("%w: party already approved this request", ErrInvalid)
	ErrAlreadyExecuted   = fmt.Errorf("%w: request already executed", ErrInvalid)
	ErrSelfApproval      = fmt.Errorf("%w: the requester cannot approve its own request", ErrUnauthorized)
	ErrNotOwner          = fmt.Errorf("%w: caller is not an account owner", ErrUnauthorized)
	ErrNotRequester      = fmt.Errorf("%w: only the requester may execute a withdrawal", ErrUnauthorized)
	ErrNoApprovals       = fmt.Errorf("%w: request has no approvals", ErrInvalid)
)
