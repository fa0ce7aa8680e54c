package cli

import (
	"context"
	"crypto/md5"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/event"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	otrace "go.opentelemetry.io/otel/trace"
)

type traceIDKey struct{}

func InitTracerProvider(ctx context.Context) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version.Current().String()),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up a trace exporter
	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Register the trace exporter with a tracer provider, using a batch
	// span processor to aggregate spans before export
	bsp := trace.NewBatchSpanProcessor(traceExporter)
	var rngSeed int64
	binary.Read(crand.Reader, binary.LittleEndian, &rngSeed)
	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
		trace.WithIDGenerator(&BlobTraceIDGenerator{
			randSource: rand.New(rand.NewSource(rngSeed)),
		}),
	)
	otel.SetTracerProvider(tracerProvider)

	// Set global propagator to tracecontext (the default is no-op)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tracerProvider.Shutdown, nil
}

// BlobTraceIDGenerator reuses a trace id placed on the context so every delivery of a blob lands in one trace.
type BlobTraceIDGenerator struct {
	sync.Mutex
	randSource *rand.Rand
}

func (b *BlobTraceIDGenerator) NewIDs(ctx context.Context) (otrace.TraceID, otrace.SpanID) {
	tid := b.newTraceID(ctx)
	sid := b.NewSpanID(ctx, tid)
	return tid, sid
}

func (b *BlobTraceIDGenerator) NewSpanID(ctx context.Context, traceID otrace.TraceID) otrace.SpanID {
	b.Lock()
	defer b.Unlock()
	sid := otrace.SpanID{}
	for {
		b.randSource.Read(sid[:])
		if sid.IsValid() {
			break
		}
	}
	return sid
}

func (b *BlobTraceIDGenerator) newTraceID(ctx context.Context) otrace.TraceID {
	tid, ok := ctx.Value(traceIDKey{}).(otrace.TraceID)
	if ok && tid.IsValid() {
		return tid
	}

	b.Lock()
	defer b.Unlock()
	tid = otrace.TraceID{}
	for {
		b.randSource.Read(tid[:])
		if tid.IsValid() {
			break
		}
	}

	return tid
}

func TracingProcessor[T event.Identifiable](next func(context.Context, T) error) func(context.Context, T) error {
	tracer := otel.Tracer("event-handling")
	return func(ctx context.Context, e T) error {
		c := context.WithValue(ctx, traceIDKey{}, blobTraceID(e.Identifier()))
		c, span := tracer.Start(c, fmt.Sprintf("Handling-%s", e.Type()))
		defer span.End()
		return next(c, e)
	}
}

func blobTraceID(id string) otrace.TraceID {
	return otrace.TraceID(md5.Sum([]byte(id)))
}
