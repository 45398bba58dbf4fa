package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSink opens a loopback UDP listener standing in for a StatsD agent.
func startSink(t *testing.T) (net.PacketConn, string) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	return pc, pc.LocalAddr().String()
}

// recvLine reads a single datagram from the sink.
func recvLine(t *testing.T, pc net.PacketConn) string {
	t.Helper()

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	return string(buf[:n])
}

// requireSilent asserts that no datagram arrives within a short window.
func requireSilent(t *testing.T, pc net.PacketConn) {
	t.Helper()

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	if err == nil {
		t.Fatalf("unexpected datagram: %q", buf[:n])
	}
	var nerr net.Error
	require.ErrorAs(t, err, &nerr)
	require.True(t, nerr.Timeout())
}

func newTestClient(t *testing.T, cfg Config) (*Client, net.PacketConn) {
	t.Helper()

	pc, addr := startSink(t)
	cfg.Enabled = true
	cfg.Address = addr

	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, pc
}

func TestClient_CountLine(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{
		Prefix:     "ocrd",
		GlobalTags: map[string]string{"service": "ocrd"},
	})

	client.Count("job.transition", 1, map[string]string{"result": "success"})

	assert.Equal(t, "ocrd.job.transition:1|c|#result:success,service:ocrd", recvLine(t, pc))
}

func TestClient_GaugeLine(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{Prefix: "ocrd"})

	client.Gauge("reaper.last_success_epoch", 1724404000, nil)
	assert.Equal(t, "ocrd.reaper.last_success_epoch:1724404000|g", recvLine(t, pc))

	// Fractional gauges keep their decimals without trailing zero padding.
	client.Gauge("queue.depth", 2.5, nil)
	assert.Equal(t, "ocrd.queue.depth:2.5|g", recvLine(t, pc))
}

func TestClient_TimingLine(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{Prefix: "ocrd"})

	client.Timing("job.duration", 1500*time.Millisecond, map[string]string{"file_type": "pdf"})
	assert.Equal(t, "ocrd.job.duration:1500|ms|#file_type:pdf", recvLine(t, pc))

	// Sub-millisecond durations survive as fractional milliseconds.
	client.Timing("job.duration", 1500*time.Microsecond, nil)
	assert.Equal(t, "ocrd.job.duration:1.5|ms", recvLine(t, pc))
}

func TestClient_TagPrecedence(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{
		Prefix: "ocrd",
		GlobalTags: map[string]string{
			"env":    "test",
			"region": "eu",
		},
	})

	// Per-call tags override globals on collision; padded keys and values
	// are trimmed and empty keys are dropped.
	client.Count("reaper.cleanup", 3, map[string]string{
		" region ": " us ",
		"":         "ignored",
	})

	assert.Equal(t, "ocrd.reaper.cleanup:3|c|#env:test,region:us", recvLine(t, pc))
}

func TestClient_NameNormalization(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{})

	cases := []struct {
		raw  string
		want string
	}{
		{"page ocr/engine", "page_ocr_engine:1|c"},
		{"jobs..completed", "jobs.completed:1|c"},
		{".queue.depth.", "queue.depth:1|c"},
		{"multi  space", "multi__space:1|c"},
	}
	for _, tc := range cases {
		client.Count(tc.raw, 1, nil)
		assert.Equal(t, tc.want, recvLine(t, pc), "name %q", tc.raw)
	}
}

func TestClient_PrefixSanitized(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{Prefix: " .ocrd. "})

	client.Count("job.transition", 1, nil)

	assert.Equal(t, "ocrd.job.transition:1|c", recvLine(t, pc))
}

func TestClient_DropsUnusableName(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{Prefix: "ocrd"})

	// A name that normalizes to nothing is dropped entirely. The sentinel
	// emitted afterwards must be the first datagram the sink sees.
	client.Count("...", 1, nil)
	client.Count("job.transition", 1, nil)

	assert.Equal(t, "ocrd.job.transition:1|c", recvLine(t, pc))
}

func TestClient_DisabledIsInert(t *testing.T) {
	t.Parallel()

	pc, addr := startSink(t)

	client, err := NewClient(Config{Enabled: false, Address: addr})
	require.NoError(t, err)

	assert.False(t, client.Enabled())

	client.Count("job.transition", 1, nil)
	client.Gauge("queue.depth", 1, nil)
	client.Timing("job.duration", time.Second, nil)

	requireSilent(t, pc)
	assert.NoError(t, client.Close())
}

func TestClient_CloseStopsEmission(t *testing.T) {
	t.Parallel()

	client, pc := newTestClient(t, Config{Prefix: "ocrd"})

	require.True(t, client.Enabled())
	require.NoError(t, client.Close())

	assert.False(t, client.Enabled())
	client.Count("job.transition", 1, nil)
	requireSilent(t, pc)

	// Closing again is a no-op.
	assert.NoError(t, client.Close())
}

func TestClient_NilClientIsSafe(t *testing.T) {
	t.Parallel()

	var client *Client

	client.Count("job.transition", 1, nil)
	client.Gauge("queue.depth", 1, nil)
	client.Timing("job.duration", time.Second, nil)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestNewClient_EmptyAddressStaysInert(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
}

func TestNewClient_DialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}
