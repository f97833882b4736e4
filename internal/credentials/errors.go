package credentials

import "errors"

var (
	ErrDeveloperNotFound = errors.New("developer not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrInvalidEnv        = errors.New("invalid project environment")
	ErrNameEmpty         = errors.New("name cannot be empty")
)
