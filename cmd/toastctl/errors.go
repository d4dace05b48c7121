package main

import (
	"github.com/jmylchreest/toastd/internal/engine"
)

// Exit codes per engine error kind, so scripts can branch on them.
const (
	exitError            = 1
	exitNotFound         = 2
	exitUnavailable      = 3
	exitCapacityExceeded = 4
	exitStateConflict    = 5
)

func exitCode(err error) int {
	switch engine.KindOf(err) {
	case engine.KindNotFound:
		return exitNotFound
	case engine.KindUnavailable:
		return exitUnavailable
	case engine.KindCapacityExceeded:
		return exitCapacityExceeded
	case engine.KindStateConflict:
		return exitStateConflict
	default:
		return exitError
	}
}
