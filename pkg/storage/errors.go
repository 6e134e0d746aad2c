package storage

import "errors"

var (
	ErrGroupExists        = errors.New("group already exists")
	ErrGroupNotFound      = errors.New("group does not exist")
	ErrPlayerNotFound     = errors.New("player does not exist")
	ErrTribeNotFound      = errors.New("tribe does not exist")
	ErrAlreadyMember      = errors.New("already in group")
	ErrNotMember          = errors.New("not in group")
	ErrPermissionExists   = errors.New("permission already granted")
	ErrPermissionNotFound = errors.New("permission not granted")
	ErrInvalidDuration    = errors.New("duration must not be negative")
)
