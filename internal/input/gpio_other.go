//go:build !linux

package input

import "context"

// Run is not available on non-Linux platforms.
func (s *GPIOSource) Run(context.Context) error {
	return ErrUnsupported
}
