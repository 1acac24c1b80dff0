package moderation

import (
	"errors"
	"fmt"

	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/platform"
)

// Errors in this package split into two groups: validation and dedup
// rejections that are shown verbatim to whoever triggered the operation, and
// operational failures that are not. UserFacing distinguishes them.
var (
	// ErrLocked means another action in the same family against the same
	// target is still inside its idempotency window.
	ErrLocked = errors.New("another moderation action against this user is still being processed")
	// ErrAlreadyResolved means a timed case was resolved by a concurrent
	// path (usually the expiration scheduler racing a manual resolution).
	ErrAlreadyResolved = errors.New("this case has already been resolved")
	ErrCaseNotFound    = errors.New("no matching case found")

	ErrDuplicateReport = errors.New("this has already been recently reported, thanks for making our community a better place!")
	ErrSelfReport      = errors.New("you cannot report yourself")
	ErrBotReport       = errors.New("you cannot report bots")
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func validationf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// UserFacing reports whether err carries a message safe and useful to show
// to the triggering user. Everything else is an operational failure that
// should be logged and summarized generically.
func UserFacing(err error) bool {
	var ve *validationError
	if errors.As(err, &ve) {
		return true
	}
	switch {
	case errors.Is(err, ErrLocked),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrCaseNotFound),
		errors.Is(err, ErrDuplicateReport),
		errors.Is(err, ErrSelfReport),
		errors.Is(err, ErrBotReport),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, platform.ErrForbidden),
		errors.Is(err, platform.ErrNotFound):
		return true
	}
	return false
}
