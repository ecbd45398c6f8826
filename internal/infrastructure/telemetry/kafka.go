package telemetry

import (
	"context"
	"slices"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier lets the otel propagator read and write kafka headers.
type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) find(key string) int {
	return slices.IndexFunc(c.headers, func(h kafka.Header) bool {
		return strings.EqualFold(h.Key, key)
	})
}

func (c *headerCarrier) Get(key string) string {
	if i := c.find(key); i >= 0 {
		return string(c.headers[i].Value)
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	if i := c.find(key); i >= 0 {
		c.headers[i].Value = []byte(value)
		return
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, header := range c.headers {
		keys = append(keys, header.Key)
	}
	return keys
}

func InjectKafkaHeaders(ctx context.Context, headers *[]kafka.Header) {
	carrier := &headerCarrier{headers: *headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	*headers = carrier.headers
}

func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &headerCarrier{headers: headers})
}
