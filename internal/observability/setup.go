package observability

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupLogging installs the JSON logger as the process default. Call it
// before anything else logs.
func SetupLogging() {
	observability.InitLogger(os.Stdout, slog.LevelInfo)
}

// Setup wires metrics and traces for the process. The returned handler
// serves the metrics registry.
func Setup(ctx context.Context, serviceName, otlpEndpoint string) (func(context.Context) error, http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.RegisterMetrics(reg)

	tracerShutdown, err := observability.InitTracing(ctx, serviceName, otlpEndpoint)
	if err != nil {
		return nil, nil, err
	}
	return tracerShutdown, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
