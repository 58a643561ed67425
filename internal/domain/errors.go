package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput        = errors.New("input is empty")
	ErrEmptyContent      = fmt.Errorf("%w: tweet content is blank", ErrEmptyInput)
	ErrInvalidInput      = errors.New("input is invalid")
	ErrPasswordTooLong   = fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, MaxPasswordBytes)
	ErrDuplicateUsername = errors.New("username is already registered")
	ErrUserNotFound      = errors.New("user does not exist")
	ErrSelfFollow        = errors.New("cannot follow yourself")
	ErrNotFollowing      = errors.New("user is not part of your following")
	ErrNotAuthenticated  = errors.New("not authenticated")
)
