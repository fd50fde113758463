package libemit

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tier is the priority class of a listener. Dispatch order is always every
// Early listener (most recently prepended first), then Active listeners in
// registration order, then Passive listeners in registration order.
type Tier byte

const (
	Active Tier = iota
	Early
	Passive
)

func (t Tier) Valid() bool {
	return t <= Passive
}

func (t Tier) String() string {
	switch t {
	case Active:
		return "active"
	case Early:
		return "early"
	case Passive:
		return "passive"
	}
	return fmt.Sprintf("tier(%d)", byte(t))
}

// ParseTier translates a loosely typed tier argument into a Tier. It accepts a
// Tier, nil (Active) and the legacy booleans: true means Early, false means
// Active. Every other value yields ErrInvalidTier.
func ParseTier(v any) (Tier, error) {
	switch t := v.(type) {
	case nil:
		return Active, nil
	case bool:
		if t {
			return Early, nil
		}
		return Active, nil
	case Tier:
		if !t.Valid() {
			return Active, errors.Wrapf(ErrInvalidTier, "unknown tier %d", byte(t))
		}
		return t, nil
	}
	return Active, errors.Wrapf(ErrInvalidTier, "unsupported tier value %v (%T)", v, v)
}
