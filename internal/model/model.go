// Package model holds the compiled-model descriptor the runtime executes.
//
// A descriptor is produced by the model compiler and is treated as read-only
// here: the runtime only looks at slot sizes, shapes and roles, and at the job
// metadata it forwards to the driver.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/23skdu/longbow-ane/internal/device"
	"github.com/23skdu/longbow-ane/internal/tile"
)

// MaxTiles is the number of physical tile slots in a model.
const MaxTiles = device.MaxTiles

// Role says what a populated tile slot is used for.
type Role uint8

const (
	RoleNone Role = iota
	RoleInput
	RoleOutput
	RoleIntermediate
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleIntermediate:
		return "intermediate"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Slot describes one physical tile slot.
type Slot struct {
	Role  Role       `cbor:"role"`
	Size  uint64     `cbor:"size"` // bytes; zero means the slot is unused
	Shape tile.Shape `cbor:"shape"`
}

// Present reports whether the model uses this slot.
func (s Slot) Present() bool { return s.Size > 0 }

// Model is a compiled model.
type Model struct {
	Name string `cbor:"name"`

	// Job metadata forwarded verbatim on submit.
	TaskSize uint64 `cbor:"task_size"`
	TDCount  uint32 `cbor:"td_count"`
	TDSize   uint32 `cbor:"td_size"`

	// FifoSize is the size of the control channel. Fifo is copied to its
	// start when the channel is created.
	FifoSize uint64 `cbor:"fifo_size"`
	Fifo     []byte `cbor:"fifo"`

	Slots [MaxTiles]Slot `cbor:"slots"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("model: invalid descriptor")

// Inputs returns the physical slots holding inputs, in slot order. The
// position in the result is the logical input index.
func (m *Model) Inputs() []int { return m.slotsWith(RoleInput) }

// Outputs returns the physical slots holding outputs, in slot order.
func (m *Model) Outputs() []int { return m.slotsWith(RoleOutput) }

func (m *Model) slotsWith(role Role) []int {
	var out []int
	for i, s := range m.Slots {
		if s.Present() && s.Role == role {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks the descriptor is something the runtime can drive.
func (m *Model) Validate() error {
	if m.FifoSize == 0 {
		return fmt.Errorf("%w: empty control channel", ErrInvalid)
	}
	if uint64(len(m.Fifo)) > m.FifoSize {
		return fmt.Errorf("%w: control program is %d bytes, channel holds %d", ErrInvalid, len(m.Fifo), m.FifoSize)
	}
	for i, s := range m.Slots {
		if !s.Present() {
			if s.Role != RoleNone {
				return fmt.Errorf("%w: slot %d has role %v but no size", ErrInvalid, i, s.Role)
			}
			continue
		}
		if s.Role == RoleNone {
			return fmt.Errorf("%w: slot %d has %d bytes but no role", ErrInvalid, i, s.Size)
		}
		if s.Role == RoleIntermediate {
			continue
		}
		if s.Size > math.MaxInt {
			return fmt.Errorf("%w: slot %d: %d bytes is too large to map", ErrInvalid, i, s.Size)
		}
		if err := s.Shape.Validate(int(s.Size)); err != nil {
			return fmt.Errorf("%w: slot %d: %w", ErrInvalid, i, err)
		}
	}
	if len(m.Inputs()) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalid)
	}
	return nil
}
