package engine

import "errors"

// ErrNotFound is returned by verbs that require a ruleset or rule to
// already exist in the local mirror.
var ErrNotFound = errors.New("engine: not found")
