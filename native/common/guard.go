package common

import "errors"

// ErrProtocolIsPaused is returned when a settlement operation is attempted
// while the protocol-level pause switch is engaged.
var ErrProtocolIsPaused = errors.New("protocol is paused")

// PauseView reports whether a module's flows are currently halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrProtocolIsPaused
	}
	return nil
}
