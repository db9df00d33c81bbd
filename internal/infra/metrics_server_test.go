package infra

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestServeMetrics(t *testing.T) {
	m := &Metrics{}
	m.RecordStake()
	m.SetOpenTickets(2)

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ServeMetrics(ctx, addr, NewMetricsRegistry(m)) }()

	var body string
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(data)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics endpoint never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, want := range []string{
		`mpsol_operations_total{operation="stake"} 1`,
		"mpsol_open_tickets 2",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape", want)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ServeMetrics should stop cleanly, got %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("ServeMetrics did not stop")
	}
}
