// Package ane drives the neural engine: it owns the device handle and the
// channels of one loaded model and moves tensors in and out of them.
package ane

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-ane/internal/device"
	"github.com/23skdu/longbow-ane/internal/model"
)

// Options configure Init. The zero value opens device.DefaultPath with
// device.Open and logs to the global logger.
type Options struct {
	// DevicePath is the render node to open.
	DevicePath string

	// Open opens the device. Tests substitute an in-memory device here.
	Open device.Opener

	// Strict rejects ports at or beyond the declared input/output count
	// with a logged diagnostic.
	Strict bool

	Logger *zerolog.Logger
}

// NN is a model loaded onto the engine.
//
// An NN is not safe for concurrent use. Callers that share one between
// goroutines must serialize every call themselves.
type NN struct {
	dev    device.Device
	model  *model.Model
	chans  *chanSet
	src    portTable
	dst    portTable
	strict bool
	log    zerolog.Logger

	scratch scratchPool
}

// Init opens the device, creates a channel for every tile slot m uses plus
// the control channel, and builds the port tables. On error everything
// acquired so far has been released and the returned NN is nil.
//
// m is borrowed and must not change while the NN is alive.
func Init(m *model.Model, opts Options) (*NN, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", model.ErrInvalid)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	path := opts.DevicePath
	if path == "" {
		path = device.DefaultPath
	}
	open := opts.Open
	if open == nil {
		open = device.Open
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	dev, err := open(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to open device")
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}

	chans, err := newChanSet(dev, m)
	if err != nil {
		logger.Error().Err(err).Msg("channel init failed")
		if cerr := dev.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrChannelInit, err)
	}

	nn := &NN{
		dev:    dev,
		model:  m,
		chans:  chans,
		src:    portTable{name: "src", slots: m.Inputs()},
		dst:    portTable{name: "dst", slots: m.Outputs()},
		strict: opts.Strict,
		log:    logger.With().Str("model", m.Name).Logger(),
	}

	nn.log.Info().
		Str("device", path).
		Int("inputs", nn.src.count()).
		Int("outputs", nn.dst.count()).
		Bool("strict", nn.strict).
		Msg("initialized nn")

	return nn, nil
}

// Free releases the channels in reverse creation order and closes the
// device. The NN must not be used afterwards.
func (nn *NN) Free() error {
	if nn.dev == nil {
		return ErrClosed
	}
	nn.log.Info().Msg("freeing nn")
	err := nn.chans.free()
	err = errors.Join(err, nn.dev.Close())
	nn.dev = nil
	return err
}

// Exec runs one job and blocks until the engine is done with it. A non-zero
// driver status comes back as a *SubmitError holding the status unchanged.
func (nn *NN) Exec() error {
	if nn.dev == nil {
		return ErrClosed
	}
	start := time.Now()
	status := submit(nn.dev, nn.model, nn.chans)
	submitDuration.Observe(time.Since(start).Seconds())
	submitTotal.Inc()
	if status != 0 {
		submitErrors.Inc()
		nn.log.Error().Int("status", status).Msg("submit failed")
		return &SubmitError{Code: status}
	}
	return nil
}

// InputCount is the number of input ports.
func (nn *NN) InputCount() int { return nn.src.count() }

// OutputCount is the number of output ports.
func (nn *NN) OutputCount() int { return nn.dst.count() }

// resolve maps a port to its channel. Ports at or past MaxTiles are always
// rejected with a diagnostic. Ports past the table are rejected too; in
// strict mode that also logs exactly one diagnostic.
func (nn *NN) resolve(t *portTable, p Port) (*channel, int, error) {
	if nn.dev == nil {
		return nil, 0, ErrClosed
	}
	if int(p) >= MaxTiles {
		nn.log.Error().Str("table", t.name).Int("index", int(p)).Int("max", MaxTiles).
			Msgf("attempted to index %d but max is %d; bailing", p, MaxTiles)
		return nil, 0, fmt.Errorf("%w: %s port %d", ErrIndexOutOfRange, t.name, p)
	}
	slot, ok := t.lookup(p)
	if !ok {
		if nn.strict {
			indexViolations.WithLabelValues(t.name).Inc()
			nn.log.Error().Str("table", t.name).Int("index", int(p)).Int("max", t.count()).
				Msgf("attempted to index %d but max is %d; bailing", p, t.count())
		}
		return nil, 0, fmt.Errorf("%w: %s port %d of %d", ErrIndexOutOfRange, t.name, p, t.count())
	}
	return nn.chans.tiles[slot], slot, nil
}

// Send copies the input tile for port p from src into its channel. Exactly
// the slot's declared size is copied.
func (nn *NN) Send(src []byte, p Port) error {
	c, _, err := nn.resolve(&nn.src, p)
	if err != nil {
		return err
	}
	return nn.send(c, src)
}

func (nn *NN) send(c *channel, src []byte) error {
	if uint64(len(src)) < c.size {
		return fmt.Errorf("%w: have %d bytes, tile is %d", ErrShortBuffer, len(src), c.size)
	}
	n := copy(c.mem, src[:c.size])
	transferBytes.WithLabelValues("send").Add(float64(n))
	return nil
}

// Read copies the output tile for port p from its channel into dst.
func (nn *NN) Read(dst []byte, p Port) error {
	c, _, err := nn.resolve(&nn.dst, p)
	if err != nil {
		return err
	}
	return nn.read(c, dst)
}

func (nn *NN) read(c *channel, dst []byte) error {
	if uint64(len(dst)) < c.size {
		return fmt.Errorf("%w: have %d bytes, tile is %d", ErrShortBuffer, len(dst), c.size)
	}
	n := copy(dst[:c.size], c.mem)
	transferBytes.WithLabelValues("read").Add(float64(n))
	return nil
}

// SrcChan returns the mapped memory of input port p, or nil if p does not
// resolve. The slice is only valid until Free.
func (nn *NN) SrcChan(p Port) []byte {
	c, _, err := nn.resolve(&nn.src, p)
	if err != nil {
		return nil
	}
	return c.mem
}

// DstChan returns the mapped memory of output port p, or nil.
func (nn *NN) DstChan(p Port) []byte {
	c, _, err := nn.resolve(&nn.dst, p)
	if err != nil {
		return nil
	}
	return c.mem
}

// SrcSize returns the tile size of input port p in bytes, or 0.
func (nn *NN) SrcSize(p Port) uint64 {
	c, _, err := nn.resolve(&nn.src, p)
	if err != nil {
		return 0
	}
	return c.size
}

// DstSize returns the tile size of output port p in bytes, or 0.
func (nn *NN) DstSize(p Port) uint64 {
	c, _, err := nn.resolve(&nn.dst, p)
	if err != nil {
		return 0
	}
	return c.size
}
