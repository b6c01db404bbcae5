package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// Setup builds a meter provider exporting to Prometheus.
// The returned handler serves /metrics; it is nil when the exporter could not be created.
func Setup(serviceName string) (*sdkmetric.MeterProvider, http.Handler, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	promExporter, err := prometheus.New()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize prometheus exporter")
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil, nil
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	return provider, promhttp.Handler(), nil
}
