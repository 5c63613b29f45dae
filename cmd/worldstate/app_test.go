package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"world-state-engine/internal/config"
	"world-state-engine/internal/core/ports"
)

type mockStore struct {
	ports.Repository
	closed bool
}

func (m *mockStore) Close() {
	m.closed = true
}

type mockSink struct {
	closed bool
	err    error
}

func (m *mockSink) Close() error {
	m.closed = true
	return m.err
}

func TestApp_Shutdown(t *testing.T) {
	store := &mockStore{}
	sink := &mockSink{}
	workerCtx, workerCancel := context.WithCancel(context.Background())

	metricsServer := &http.Server{Addr: "127.0.0.1:0"}
	go func() {
		_ = metricsServer.ListenAndServe()
	}()
	time.Sleep(10 * time.Millisecond)

	otelCalled := false
	app := &App{
		config:        &config.Config{},
		store:         store,
		sinks:         []io.Closer{sink},
		metricsServer: metricsServer,
		workerCtx:     workerCtx,
		workerCancel:  workerCancel,
		otelShutdown: func(context.Context) error {
			otelCalled = true
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if !store.closed {
		t.Error("Store was not closed")
	}
	if !sink.closed {
		t.Error("Audit sink was not closed")
	}
	if !otelCalled {
		t.Error("Tracing was not shut down")
	}
	select {
	case <-workerCtx.Done():
	default:
		t.Error("Worker context was not cancelled")
	}
}

func TestApp_Shutdown_ReportsSinkErrors(t *testing.T) {
	app := &App{
		config: &config.Config{},
		store:  &mockStore{},
		sinks:  []io.Closer{&mockSink{err: errors.New("disk full")}},
	}

	err := app.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Shutdown error = %v, want sink error", err)
	}
}

func TestApp_Shutdown_NilComponents(t *testing.T) {
	app := &App{config: &config.Config{}}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed with nil components: %v", err)
	}
}

func TestStartMetricsServer(t *testing.T) {
	app := &App{config: &config.Config{MetricsAddr: "127.0.0.1:0"}}

	app.startMetricsServer()

	if app.metricsServer == nil {
		t.Fatal("Metrics server not initialized")
	}
	_ = app.metricsServer.Close()
}

func TestNewCatalog(t *testing.T) {
	t.Run("remote when url set", func(t *testing.T) {
		cfg := &config.Config{CatalogURL: "http://catalog.local", CatalogTimeout: time.Second, Policy: &config.Policy{}}
		if _, err := newCatalog(cfg); err != nil {
			t.Fatalf("newCatalog() error = %v", err)
		}
	})

	t.Run("static rejects bad region id", func(t *testing.T) {
		cfg := &config.Config{Policy: &config.Policy{Catalog: config.CatalogPolicy{
			Zones: []config.ZoneEntry{{ZoneID: "z1", RegionID: "not-a-uuid"}},
		}}}
		if _, err := newCatalog(cfg); err == nil {
			t.Error("expected error for invalid zone region id")
		}
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
	}{
		{"debug", true},
		{"info", false},
		{"bogus", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			logger.Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.debugSeen {
				t.Errorf("debug visible = %v, want %v", got, tt.debugSeen)
			}
		})
	}
}
