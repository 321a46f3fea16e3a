package chainmap

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound reports a lookup or delete miss.
var ErrKeyNotFound = errors.New("chainmap: key not found")

// KeyError carries the key that missed. It matches ErrKeyNotFound with
// errors.Is.
type KeyError struct {
	Key any
	Op  string
}

func (e *KeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("%v: %v", ErrKeyNotFound, e.Key)
	}
	return fmt.Sprintf("chainmap: %s %v: key not found", e.Op, e.Key)
}

func (e *KeyError) Unwrap() error {
	return ErrKeyNotFound
}

func keyNotFound(op string, key any) error {
	return &KeyError{Key: key, Op: op}
}
