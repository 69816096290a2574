package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "availability.window.added.v1", Key: []byte("42")})
	if meta.EventID != "42" || meta.EventType != "availability.window.added.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	msg := kafka.Message{Headers: EventMeta{EventID: "evt-1", EventType: "x.v1"}.Headers()}
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "x.v1" {
		t.Fatalf("unexpected meta from headers: %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %#v", got)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected error when no brokers configured")
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	carrier := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)

	headers := InjectTraceHeaders(ctx, nil)
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	back := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	out := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(back, out)
	if out["traceparent"] != carrier["traceparent"] {
		t.Fatalf("trace context lost: %q", out["traceparent"])
	}
}
