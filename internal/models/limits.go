package models

import (
	"errors"
	"fmt"
)

// MaxContentSize is the largest encrypted payload a single message may carry.
const MaxContentSize = 16 * 1024

var (
	ErrEmptyContent     = errors.New("encrypted content is empty")
	ErrContentTooLarge  = fmt.Errorf("encrypted content exceeds %d bytes", MaxContentSize)
	ErrIndexOutOfBounds = errors.New("message index out of bounds")
)

// ValidateContent applies the size rules every store enforces on writes.
func ValidateContent(content []byte) error {
	if len(content) == 0 {
		return ErrEmptyContent
	}
	if len(content) > MaxContentSize {
		return ErrContentTooLarge
	}
	return nil
}
