package stream

import "errors"

// ErrNoValue is returned by First when a source completes without a value.
var ErrNoValue = errors.New("stream completed without a value")

var errFirstFound = errors.New("first value found")
