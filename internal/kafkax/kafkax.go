package kafkax

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", list[0])
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
