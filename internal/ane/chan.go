package ane

import (
	"errors"
	"fmt"

	"github.com/23skdu/longbow-ane/internal/device"
	"github.com/23skdu/longbow-ane/internal/model"
)

// channel is one device buffer mapped into the process. It owns both the
// buffer object and the mapping.
type channel struct {
	dev    device.Device
	handle uint32
	size   uint64
	mem    []byte
}

// openChannel allocates and maps a buffer of size bytes. On error nothing is
// left allocated.
func openChannel(dev device.Device, size uint64) (*channel, error) {
	handle, offset, err := dev.AllocBuffer(size)
	if err != nil {
		return nil, err
	}
	mem, err := dev.Map(offset, int(size))
	if err != nil {
		if ferr := dev.FreeBuffer(handle); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return nil, err
	}
	channelsLive.Inc()
	return &channel{dev: dev, handle: handle, size: size, mem: mem}, nil
}

// release unmaps and frees the channel. Calling it again is a no-op.
func (c *channel) release() error {
	if c == nil || c.dev == nil {
		return nil
	}
	var err error
	if c.mem != nil {
		err = c.dev.Unmap(c.mem)
		c.mem = nil
	}
	err = errors.Join(err, c.dev.FreeBuffer(c.handle))
	c.dev = nil
	channelsLive.Dec()
	return err
}

// chanSet holds the channels of one context: one per populated tile slot
// plus the control channel.
type chanSet struct {
	tiles [model.MaxTiles]*channel
	fifo  *channel

	// created lists channels in creation order; free walks it backwards.
	created []*channel
}

// newChanSet creates a channel for every populated slot of m, in slot order,
// then the control channel. If any step fails everything created so far is
// released before the error is returned.
func newChanSet(dev device.Device, m *model.Model) (cs *chanSet, err error) {
	cs = &chanSet{}
	defer func() {
		if err != nil {
			if ferr := cs.free(); ferr != nil {
				err = errors.Join(err, ferr)
			}
			cs = nil
		}
	}()

	for bdx, s := range m.Slots {
		if !s.Present() {
			continue
		}
		c, err := openChannel(dev, s.Size)
		if err != nil {
			return cs, fmt.Errorf("tile %d (%d bytes): %w", bdx, s.Size, err)
		}
		cs.tiles[bdx] = c
		cs.created = append(cs.created, c)
	}

	c, err := openChannel(dev, m.FifoSize)
	if err != nil {
		return cs, fmt.Errorf("fifo (%d bytes): %w", m.FifoSize, err)
	}
	copy(c.mem, m.Fifo)
	cs.fifo = c
	cs.created = append(cs.created, c)

	return cs, nil
}

// free releases every channel in reverse creation order. All channels are
// released even if some fail; the errors are joined.
func (cs *chanSet) free() error {
	var err error
	for i := len(cs.created) - 1; i >= 0; i-- {
		err = errors.Join(err, cs.created[i].release())
	}
	cs.created = nil
	cs.tiles = [model.MaxTiles]*channel{}
	cs.fifo = nil
	return err
}
