package ane

import (
	"github.com/23skdu/longbow-ane/internal/device"
	"github.com/23skdu/longbow-ane/internal/model"
)

// submitArgs builds the job descriptor: the model's job metadata, the handle
// of every populated tile slot (0 elsewhere) and the control channel handle.
func submitArgs(m *model.Model, cs *chanSet) *device.SubmitArgs {
	args := &device.SubmitArgs{
		TaskSize: m.TaskSize,
		TDCount:  m.TDCount,
		TDSize:   m.TDSize,
	}
	for bdx, c := range cs.tiles {
		if c != nil {
			args.Handles[bdx] = c.handle
		}
	}
	args.FifoHandle = cs.fifo.handle
	return args
}

// submit issues one job and returns the driver status untouched.
func submit(dev device.Device, m *model.Model, cs *chanSet) int {
	return dev.Submit(submitArgs(m, cs))
}
