package engine

import "time"

// Timer is the subset of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so tests can drive the
// countdown deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall-clock implementation used in production.
func RealClock() Clock { return realClock{} }
