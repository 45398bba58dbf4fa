// Package statsd emits application metrics over UDP using the StatsD line
// protocol with DogStatsD-style tags. A disabled or unconfigured client is
// inert: every emit call is a no-op, so call sites never need nil checks.
package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is what instrumented code depends on: the three StatsD metric kinds
// this codebase uses.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config controls the endpoint, metric prefix and tags applied to every line.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

// Client is the UDP-backed Sink. Safe for concurrent use; a nil *Client is
// valid and silently discards everything.
type Client struct {
	enabled    bool
	address    string
	prefix     string
	globalTags map[string]string

	logger *slog.Logger
	conn   net.Conn
	mu     sync.Mutex
}

var _ Sink = (*Client)(nil)

const dialTimeout = 5 * time.Second

// NewClient dials the configured StatsD endpoint. With Enabled false or an
// empty address it returns an inert client and no error.
func NewClient(cfg Config) (*Client, error) {
	address := strings.TrimSpace(cfg.Address)

	client := &Client{
		enabled:    cfg.Enabled && address != "",
		address:    address,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		globalTags: scrubTags(cfg.GlobalTags),
		logger:     cfg.Logger,
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	if !client.enabled {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn

	return client, nil
}

// Enabled reports whether emit calls currently reach the wire.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && c.conn != nil
}

// Count adds value to the named counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, strconv.FormatInt(value, 10)+"|c", tags)
}

// Gauge sets the named gauge to value.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, formatFloat(value)+"|g", tags)
}

// Timing reports a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, formatFloat(ms)+"|ms", tags)
}

// Close drops the UDP connection and disables the client for good.
// Calling it twice is fine.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// emit builds one protocol line and sends it. Metrics with an empty name
// after normalization are dropped; send failures are logged at debug level
// and never surface, metrics must not take down the pipeline.
func (c *Client) emit(name, payload string, tags map[string]string) {
	metric := c.qualifyName(name)
	if metric == "" {
		return
	}

	line := metric + ":" + payload + encodeTags(c.globalTags, tags)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "error", err)
	}
}

// qualifyName joins the configured prefix with the normalized metric name.
// A name that normalizes to nothing yields "", which drops the metric.
func (c *Client) qualifyName(name string) string {
	normalized := normalizeMetricName(name)
	if normalized == "" || c.prefix == "" {
		return normalized
	}
	return c.prefix + "." + normalized
}

// normalizeMetricName rewrites a metric name into the dotted form the line
// protocol expects: spaces and slashes become underscores, repeated dots
// collapse, and leading or trailing dots are dropped.
func normalizeMetricName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastDot := true // swallows leading dots
	for _, r := range strings.TrimSpace(name) {
		switch r {
		case ' ', '/':
			b.WriteByte('_')
			lastDot = false
		case '.':
			if !lastDot {
				b.WriteByte('.')
				lastDot = true
			}
		default:
			b.WriteRune(r)
			lastDot = false
		}
	}
	return strings.TrimSuffix(b.String(), ".")
}

// encodeTags merges global and per-call tags into the |#k:v,... suffix.
// Per-call tags win on key collisions; keys sort so lines are stable for
// tests and for downstream aggregation.
func encodeTags(global, local map[string]string) string {
	if len(global)+len(local) == 0 {
		return ""
	}

	merged := make(map[string]string, len(global)+len(local))
	for _, tags := range []map[string]string{global, local} {
		for k, v := range tags {
			if k = strings.TrimSpace(k); k != "" {
				merged[k] = strings.TrimSpace(v)
			}
		}
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return b.String()
}

// scrubTags copies a tag map, dropping empty keys and trimming whitespace.
func scrubTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
