// Package tracing installs the OpenTelemetry tracer provider used by the
// scheduler, the procedure manager and the asset bootstrap. Without Init the
// global provider is a no-op and spans cost nothing.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Provider is an installed tracer provider and the writer its exporter owns
type Provider struct {
	*sdktrace.TracerProvider
	out io.Closer
}

// Shutdown flushes pending spans and closes the output file, if any
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.TracerProvider.Shutdown(ctx)
	if p.out != nil {
		err = errors.Join(err, p.out.Close())
	}
	return err
}

// NewProvider builds a tracer provider around exporter without installing it
func NewProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Provider{TracerProvider: tp}, nil
}

var (
	installOnce sync.Once
	installed   *Provider
	installErr  error
)

// Init installs a stdout exporter as the global provider; output is
// "stdout", "stderr" (the default) or a file path. The first call wins,
// later calls return the same provider
func Init(serviceName, serviceVersion, output string) (*Provider, error) {
	installOnce.Do(func() {
		w, closer, err := openOutput(output)
		if err != nil {
			installErr = err
			return
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			installErr = err
			return
		}
		p, err := NewProvider(serviceName, serviceVersion, exporter)
		if err != nil {
			installErr = err
			return
		}
		p.out = closer
		otel.SetTracerProvider(p)
		installed = p
	})
	return installed, installErr
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
