package rbac

import "errors"

var (
	ErrUnknownRole        = errors.New("unknown role")
	ErrRoleAlreadyGranted = errors.New("role already granted")
	ErrGrantNotFound      = errors.New("grant not found")
)
