package auth

import "errors"

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnverified            = errors.New("email not verified")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrSelfDeleteForbidden   = errors.New("cannot delete your own account")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidRole           = errors.New("invalid role")
	ErrPasswordTooLong       = errors.New("password exceeds 72 bytes")

	ErrUnauthenticated   = errors.New("authentication required")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrForbidden         = errors.New("insufficient privileges")

	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps a failure of the backing store. It matches
// ErrStoreUnavailable under errors.Is and keeps the driver error reachable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
