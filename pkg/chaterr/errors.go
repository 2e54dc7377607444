// Package chaterr defines the error taxonomy shared by the chat layer.
package chaterr

import (
	"errors"
	"fmt"
)

var (
	ErrAuth          = errors.New("unauthenticated")
	ErrStore         = errors.New("store unavailable")
	ErrAuthorization = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid request")
)

// StoreError wraps a persistence failure. It matches ErrStore with errors.Is
// and still exposes the backend error through errors.As / Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Store wraps err as a StoreError unless it is nil or already carries one of
// the domain sentinels.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid) || errors.Is(err, ErrAuthorization) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
