package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
)

type fakeGossip struct {
	stats gossip.Stats
	err   error
}

func (f *fakeGossip) Stats() (gossip.Stats, error) { return f.stats, f.err }

type fakeHub struct {
	stats signaling.Stats
	err   error
}

func (f *fakeHub) Stats() (signaling.Stats, error) { return f.stats, f.err }

func sampleStats() (gossip.Stats, signaling.Stats) {
	g := gossip.Stats{
		Peers: 2, Known: 3, Keys: 4, Retrying: 1,
		Connections: 5, MessagesIn: 10, MessagesOut: 20, BytesIn: 100, BytesOut: 200,
	}
	h := signaling.Stats{
		Connections: 1, TotalConnections: 7,
		Topics:     map[string]int{"room": 2, "empty": 0},
		MessagesIn: 3, MessagesOut: 4, BytesIn: 30, BytesOut: 40, Dropped: 6,
	}
	return g, h
}

func TestAggregate(t *testing.T) {
	g, h := sampleStats()
	start := time.Unix(1000, 0)

	snap := Aggregate(g, h, start, start.Add(90*time.Second))
	assert.Equal(t, uint64(12), snap.Connections)
	assert.Equal(t, uint64(37), snap.Messages)
	assert.Equal(t, uint64(370), snap.Bytes)
	assert.Equal(t, 90*time.Second, snap.Uptime)
	assert.Equal(t, start, snap.StartTime)
	assert.Equal(t, g, snap.Gossip)

	t.Run("clock behind start", func(t *testing.T) {
		snap := Aggregate(g, h, start, start.Add(-time.Second))
		assert.Zero(t, snap.Uptime)
	})
}

func TestRender(t *testing.T) {
	g, h := sampleStats()
	start := time.Unix(1000, 0)
	text, err := Render(Aggregate(g, h, start, start.Add(90*time.Second)), "gossiphub")
	require.NoError(t, err)

	for _, line := range []string{
		"# HELP gossiphub_connections_total Connections accepted or established by the gossip node and the hub.",
		"# TYPE gossiphub_connections_total counter",
		"gossiphub_connections_total 12",
		"# TYPE gossiphub_uptime_seconds gauge",
		"gossiphub_uptime_seconds 90",
		"gossiphub_messages_total 37",
		"gossiphub_bytes_total 370",
		"gossiphub_gossip_peers 2",
		"gossiphub_hub_clients 1",
		"gossiphub_hub_topics 2",
		"gossiphub_hub_dropped_total 6",
		`gossiphub_hub_topic_subscribers{topic="empty"} 0`,
		`gossiphub_hub_topic_subscribers{topic="room"} 2`,
	} {
		assert.Contains(t, text, line+"\n")
	}

	t.Run("without namespace", func(t *testing.T) {
		text, err := Render(Snapshot{}, "")
		require.NoError(t, err)
		assert.Contains(t, text, "\nconnections_total 0\n")
		assert.NotContains(t, text, "topic_subscribers{")
	})
}

func TestRateMeter(t *testing.T) {
	clk := clock.NewMock()
	r := NewRateMeter(clk)

	r.Add(60)
	assert.Equal(t, 1.0, r.Rate())

	clk.Add(30 * time.Second)
	r.Add(30)
	assert.Equal(t, uint64(90), r.Total())
	assert.Equal(t, 1.5, r.Rate())

	clk.Add(31 * time.Second)
	assert.Equal(t, uint64(30), r.Total(), "first bucket left the window")

	clk.Add(61 * time.Second)
	assert.Zero(t, r.Total())

	r.Add(5)
	r.Reset()
	assert.Zero(t, r.Total())
}

func TestCollector(t *testing.T) {
	g, h := sampleStats()
	gs, hs := &fakeGossip{stats: g}, &fakeHub{stats: h}
	clk := clock.NewMock()
	c := NewCollector("gossiphub", gs, hs, WithClock(clk))

	t.Run("snapshot and rates", func(t *testing.T) {
		clk.Add(10 * time.Second)
		snap := c.Snapshot()
		assert.Equal(t, 10*time.Second, snap.Uptime)
		assert.Equal(t, uint64(37), snap.Messages)
		assert.InDelta(t, 37.0/60, snap.MessageRate, 1e-9)
		assert.InDelta(t, 370.0/60, snap.ByteRate, 1e-9)

		gs.stats.MessagesIn += 23
		snap = c.Snapshot()
		assert.InDelta(t, 1.0, snap.MessageRate, 1e-9)
	})

	t.Run("registry", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		require.NoError(t, reg.Register(c))

		families, err := reg.Gather()
		require.NoError(t, err)
		byName := map[string]*dto.MetricFamily{}
		for _, mf := range families {
			byName[mf.GetName()] = mf
		}

		conns := byName["gossiphub_connections_total"]
		require.NotNil(t, conns)
		assert.Equal(t, dto.MetricType_COUNTER, conns.GetType())
		assert.Equal(t, 12.0, conns.GetMetric()[0].GetCounter().GetValue())

		subs := byName["gossiphub_hub_topic_subscribers"]
		require.NotNil(t, subs)
		assert.Equal(t, dto.MetricType_GAUGE, subs.GetType())
		assert.Len(t, subs.GetMetric(), 2)
	})

	t.Run("closed sources read as zero", func(t *testing.T) {
		c := NewCollector("x", &fakeGossip{err: gossip.ErrNodeClosed}, &fakeHub{err: errors.New("boom")})
		snap := c.Snapshot()
		assert.Zero(t, snap.Connections)
		assert.NotNil(t, snap.Hub.Topics)

		text, err := c.Render()
		require.NoError(t, err)
		assert.Contains(t, text, "x_connections_total 0\n")
	})

	t.Run("nil sources", func(t *testing.T) {
		c := NewCollector("x", nil, nil, WithStartTime(time.Unix(5, 0)))
		assert.Equal(t, time.Unix(5, 0), c.Snapshot().StartTime)
	})
}

func TestCollector_StartStop(t *testing.T) {
	g, h := sampleStats()
	clk := clock.NewMock()
	c := NewCollector("gossiphub", &fakeGossip{stats: g}, &fakeHub{stats: h}, WithClock(clk))

	c.Start(0)
	c.Stop()

	c.Start(time.Minute)
	c.Start(time.Minute)
	clk.Add(time.Minute)
	c.Stop()
	c.Stop()

	assert.Equal(t, "512.00 B/s", formatRate(512))
	assert.Equal(t, "2.00 KB/s", formatRate(2048))
	assert.Equal(t, "3.00 MB/s", formatRate(3*1024*1024))
}
