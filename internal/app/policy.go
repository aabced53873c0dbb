package app

import (
	"github.com/hearth-chat/gateway/internal/core"
	"github.com/hearth-chat/gateway/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member that cannot keep up with a
// room's fan-out rate.
type Policy interface {
	OnBackpressure(room domain.RoomKey, id core.ConnID) BackpressureAction
}

// KickSlowPolicy closes slow consumers; the transport teardown then
// runs the normal disconnect cascade.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(room domain.RoomKey, id core.ConnID) BackpressureAction {
	return KickMember
}
