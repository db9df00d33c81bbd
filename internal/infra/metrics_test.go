package infra

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordCommand(t *testing.T) {
	m := &Metrics{}

	m.RecordCommand(1000, true)
	m.RecordCommand(2000, true)
	m.RecordCommand(3000, false)

	snap := m.Snapshot()

	if snap.CommandsApplied != 2 {
		t.Errorf("Expected 2 applied commands, got %d", snap.CommandsApplied)
	}
	if snap.CommandsRejected != 1 {
		t.Errorf("Expected 1 rejected command, got %d", snap.CommandsRejected)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Operations(t *testing.T) {
	m := &Metrics{}

	m.RecordStake()
	m.RecordStake()
	m.RecordUnstake()
	m.RecordClaim()
	m.RecordStalePrice()
	m.RecordOracleError()
	m.SetOpenTickets(4)

	snap := m.Snapshot()
	if snap.Stakes != 2 || snap.Unstakes != 1 || snap.Claims != 1 {
		t.Errorf("unexpected operation counts: %+v", snap)
	}
	if snap.StalePricesDropped != 1 {
		t.Errorf("Expected 1 stale price, got %d", snap.StalePricesDropped)
	}
	if snap.OracleErrors != 1 {
		t.Errorf("Expected 1 oracle error, got %d", snap.OracleErrors)
	}
	if snap.OpenTickets != 4 {
		t.Errorf("Expected 4 open tickets, got %d", snap.OpenTickets)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordCommand(1000, true)
	m.RecordOracleError()
	m.SetOpenTickets(2)

	m.Reset()
	snap := m.Snapshot()

	if snap.CommandsApplied != 0 {
		t.Error("Expected 0 commands after reset")
	}
	if snap.OracleErrors != 0 {
		t.Error("Expected 0 oracle errors after reset")
	}
	if snap.OpenTickets != 0 {
		t.Error("Expected 0 open tickets after reset")
	}
}

func TestMetricsCollector(t *testing.T) {
	m := &Metrics{}
	m.RecordCommand(1000, true)
	m.RecordStake()

	c := NewMetricsCollector(m)
	if n := testutil.CollectAndCount(c); n != 9 {
		t.Errorf("Expected 9 samples, got %d", n)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 6 {
		t.Errorf("Expected 6 metric families, got %d", len(families))
	}
}
