package services

import "errors"

// ErrForbidden is returned when an authenticated caller lacks the
// ownership or role required for an operation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidCredentials is returned on login failure. An unknown
// username and a wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")
