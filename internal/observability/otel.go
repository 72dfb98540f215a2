// Package observability sets up tracing export and the Prometheus
// collectors of the retrieval pipeline.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-rag-backend/internal/config"
)

// Resource attribute keys describing how this instance answers questions.
const (
	AttrEmbeddingProvider = attribute.Key("rag.embedding.provider")
	AttrEmbeddingModel    = attribute.Key("rag.embedding.model")
	AttrLLMProvider       = attribute.Key("rag.llm.default_provider")
	AttrChunkSize         = attribute.Key("rag.chunk.size")
)

// Tracing is what SetupOTel needs from the loaded configuration.
type Tracing struct {
	OTEL      config.OTELConfig
	Version   string
	Embedding config.EmbeddingConfig
	LLM       string
	ChunkSize int
}

// TracingFrom picks the tracing inputs out of cfg.
func TracingFrom(cfg config.Config, version string) Tracing {
	return Tracing{
		OTEL:      cfg.OTEL,
		Version:   version,
		Embedding: cfg.Embedding,
		LLM:       cfg.LLM.DefaultProvider,
		ChunkSize: cfg.RAG.ChunkSize,
	}
}

// exporterFor is replaced in tests.
var exporterFor = func(ctx context.Context, cfg config.OTELConfig) (*otlptrace.Exporter, error) {
	creds := otlptracegrpc.WithInsecure()
	if !cfg.Insecure {
		creds = otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), creds))
}

// pipelineResource identifies the service and the retrieval stack behind
// its spans. Empty values are left out.
func pipelineResource(ctx context.Context, t Tracing) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(t.OTEL.ServiceName),
		semconv.ServiceVersion(t.Version),
	}
	for k, v := range map[attribute.Key]string{
		AttrEmbeddingProvider: t.Embedding.Provider,
		AttrEmbeddingModel:    t.Embedding.Model,
		AttrLLMProvider:       t.LLM,
	} {
		if v != "" {
			attrs = append(attrs, k.String(v))
		}
	}
	if t.ChunkSize > 0 {
		attrs = append(attrs, AttrChunkSize.Int(t.ChunkSize))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...), resource.WithProcessRuntimeName())
}

// SetupOTel installs a batching OTLP/gRPC tracer provider and the W3C
// propagators. Disabled tracing yields a no-op shutdown and untouched globals,
// as does any setup error.
func SetupOTel(ctx context.Context, t Tracing) (func(context.Context) error, error) {
	if !t.OTEL.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	res, err := pipelineResource(ctx, t)
	if err != nil {
		return nil, err
	}
	exp, err := exporterFor(ctx, t.OTEL)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(t.OTEL.SampleRatio)),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// sampler keeps the parent's decision and samples root spans by ratio.
func sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	if ratio >= 1 {
		root = sdktrace.AlwaysSample()
	} else if ratio <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}
