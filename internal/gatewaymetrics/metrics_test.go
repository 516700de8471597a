package gatewaymetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetEnabled(t *testing.T) {
	SetEnabled(true)
	if got := testutil.ToFloat64(Enabled); got != 1 {
		t.Fatalf("expected Enabled=1, got %v", got)
	}

	SetEnabled(false)
	if got := testutil.ToFloat64(Enabled); got != 0 {
		t.Fatalf("expected Enabled=0, got %v", got)
	}
}

func TestSetChannelValue(t *testing.T) {
	SetChannelValue(5, "veg", "bar1", "red", 200)

	got := testutil.ToFloat64(ChannelValue.WithLabelValues("5", "veg", "bar1", "red"))
	if got != 200 {
		t.Fatalf("expected channel value 200, got %v", got)
	}
}

func TestCommandsAndErrorsCounters(t *testing.T) {
	CommandsTotal.WithLabelValues("set").Inc()
	if got := testutil.ToFloat64(CommandsTotal.WithLabelValues("set")); got < 1 {
		t.Fatalf("expected CommandsTotal[set] >= 1, got %v", got)
	}

	ErrorsTotal.WithLabelValues("timeout").Inc()
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("timeout")); got < 1 {
		t.Fatalf("expected ErrorsTotal[timeout] >= 1, got %v", got)
	}
}
