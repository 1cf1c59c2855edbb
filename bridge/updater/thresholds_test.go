package updater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThresholdBands(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		pps       int
		immediate bool
		interval  time.Duration
		band      string
	}{
		{0, true, 0, "normal"},
		{249, true, 0, "normal"},
		{250, false, FirstFlushInterval, "first"},
		{449, false, FirstFlushInterval, "first"},
		{450, false, SecondFlushInterval, "second"},
		{10000, false, SecondFlushInterval, "second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.immediate, th.AllowsImmediate(tt.pps), "pps=%d", tt.pps)
		assert.Equal(t, tt.interval, th.FlushInterval(tt.pps), "pps=%d", tt.pps)
		assert.Equal(t, tt.band, th.Band(tt.pps), "pps=%d", tt.pps)
	}
}
