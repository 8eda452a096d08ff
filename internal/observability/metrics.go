package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// Telemetry bundles the telemetry system with its Prometheus exporter.
type Telemetry struct {
	System   *telemetry.System
	Exporter *exporters.PrometheusExporter
	port     int
}

// StartTelemetry starts a Prometheus exporter listening on port (0 picks a
// free port) and returns a telemetry system emitting to it.
func StartTelemetry(namespace string, port int) (*Telemetry, error) {
	requestedPort := port
	if requestedPort < 0 {
		requestedPort = 0
	}

	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf(":%d", requestedPort))
	if err := exporter.Start(); err != nil {
		return nil, err
	}

	t := &Telemetry{Exporter: exporter, port: requestedPort}

	// Update port with the one the exporter actually bound to
	if actualPort, err := resolvePort(exporter.GetAddr()); err == nil {
		t.port = actualPort
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		return nil, err
	}
	t.System = sys

	return t, nil
}

// DisableGlobalTelemetry keeps gofulmen internals from emitting to stdout
// when no exporter is configured.
func DisableGlobalTelemetry() {
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}
}

// Stop shuts down the Prometheus exporter.
func (t *Telemetry) Stop() {
	if t == nil || t.Exporter == nil {
		return
	}
	_ = t.Exporter.Stop()
}

// Port returns the port the Prometheus exporter is listening on
func (t *Telemetry) Port() int {
	if t == nil {
		return 0
	}
	return t.port
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	return port, nil
}
