package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Shutdown func(context.Context) error

// InitTracer installs a global tracer provider that prints spans to stdout.
// When disabled the global no-op provider stays in place.
func InitTracer(serviceName string, enabled bool, log *logrus.Logger) (Shutdown, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}
	return initTracer(serviceName, os.Stdout, log)
}

func initTracer(serviceName string, w io.Writer, log *logrus.Logger) (Shutdown, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	if log != nil {
		log.WithField("service", serviceName).Info("tracing to stdout")
	}
	return tp.Shutdown, nil
}
