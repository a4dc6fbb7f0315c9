package exception

import "github.com/yanun0323/errors"

// Store errors
var (
	ErrStoreClosed     = errors.New("store: closed")
	ErrSnapshotDrift   = errors.New("store: snapshot aggregates drift from user records")
	ErrInvalidSnapshot = errors.New("store: invalid snapshot")
)

// ErrKeyNotDeclared is returned when an operation touches a record it did not declare up front.
var ErrKeyNotDeclared = errors.New("store: record key not declared for this operation")
