// SPDX-License-Identifier: MIT

package param

import "errors"

var (
	// ErrNotGettable is returned by Get on set-only parameters.
	ErrNotGettable = errors.New("parameter is not gettable")
	// ErrNotSettable is returned by Set on read-only parameters.
	ErrNotSettable = errors.New("parameter is not settable")
	// ErrUnmappedValue is returned when a value-mapped parameter sees a
	// value or wire string outside its mapping table.
	ErrUnmappedValue = errors.New("value not in mapping table")
	// ErrNoCachedValue is returned by Cached before the first get/set.
	ErrNoCachedValue = errors.New("no cached value")
	// ErrInvalidValue wraps validator rejections so callers can tell a bad
	// request from a hardware failure.
	ErrInvalidValue = errors.New("invalid value")
)
