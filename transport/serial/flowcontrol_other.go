//go:build !linux

package serial

// DisableFlowControl is a no-op outside Linux; the engine still calls it
// unconditionally around a transfer, it just has nothing to toggle.
func (p *Port) DisableFlowControl() error { return nil }

// RestoreFlowControl is a no-op outside Linux.
func (p *Port) RestoreFlowControl() error { return nil }
