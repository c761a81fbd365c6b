package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buffersLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ane_device_buffers_live",
		Help: "Number of buffer objects currently allocated on the device",
	})

	bytesMapped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ane_device_bytes_mapped",
		Help: "Bytes of device memory currently mapped into the process",
	})

	ioctlErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ane_device_ioctl_errors_total",
		Help: "Failed driver ioctls",
	}, []string{"op"})
)
