// Package system provides the wall-clock implementation of clip.Clock.
package system

import "time"

// Clock reports the current wall-clock time.
type Clock struct{}

// New returns a system Clock.
func New() *Clock { return &Clock{} }

// Now returns time.Now.
func (c *Clock) Now() time.Time { return time.Now() }
