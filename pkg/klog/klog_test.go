package klog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devdnl/dnxcore/pkg/klog"
)

func TestRingSinkWritesFormattedLines(t *testing.T) {
	sink := klog.NewRingSink(256)
	sink.Log(klog.LevelInfo, "driver %s up", "console")

	snapshot := string(sink.Snapshot())
	assert.True(t, strings.Contains(snapshot, "[INFO] driver console up"))
}

func TestRingSinkStopsWritingOnceFull(t *testing.T) {
	sink := klog.NewRingSink(8)
	for i := 0; i < 100; i++ {
		sink.Log(klog.LevelWarn, "x")
	}
	// Must not panic or grow past its fixed capacity.
	assert.Len(t, sink.Snapshot(), 8)
}

func TestDiscardSwallowsEverything(t *testing.T) {
	var s klog.Sink = klog.Discard{}
	assert.NotPanics(t, func() { s.Log(klog.LevelError, "%s", "boom") })
}
