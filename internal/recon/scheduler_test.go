package recon

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberdash/reconengine/internal/logging"
	"github.com/cyberdash/reconengine/internal/metrics"
)

var testAddr = netip.MustParseAddr("192.0.2.1")

func specsFor(ports ...uint16) []PortSpec {
	specs := make([]PortSpec, len(ports))
	for i, p := range ports {
		specs[i] = PortSpec{Port: p, Service: CustomService}
	}
	return specs
}

func portRange(from uint16, n int) []uint16 {
	ports := make([]uint16, n)
	for i := range ports {
		ports[i] = from + uint16(i)
	}
	return ports
}

func newTestScheduler(d Dialer, batchSize int, m *metrics.PrometheusMetrics) *Scheduler {
	logger := logging.NewDiscard()
	return NewScheduler(NewProber(d, logger, m), batchSize, logger, m)
}

func TestScheduler_PreservesRequestedOrder(t *testing.T) {
	dialer := newFakeDialer(dialOpen)
	dialer.behaviors[80] = dialRefuse
	dialer.delays[443] = 40 * time.Millisecond
	dialer.delays[80] = 20 * time.Millisecond

	scheduler := newTestScheduler(dialer, 10, nil)
	results, err := scheduler.Run(context.Background(), testAddr, specsFor(443, 80, 22), time.Second, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, uint16(443), results[0].Port)
	assert.Equal(t, StatusOpen, results[0].Status)
	assert.Equal(t, uint16(80), results[1].Port)
	assert.Equal(t, StatusClosed, results[1].Status)
	assert.Equal(t, uint16(22), results[2].Port)
	assert.Equal(t, StatusOpen, results[2].Status)
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	dialer := newFakeDialer(dialOpen)
	for _, p := range portRange(1000, 25) {
		dialer.delays[p] = 10 * time.Millisecond
	}

	scheduler := newTestScheduler(dialer, 10, nil)
	results, err := scheduler.Run(context.Background(), testAddr, specsFor(portRange(1000, 25)...), time.Second, nil)
	require.NoError(t, err)

	assert.Len(t, results, 25)
	assert.LessOrEqual(t, dialer.maxActive.Load(), int32(10))
	assert.Len(t, dialer.Dialed(), 25)
}

func TestScheduler_BatchBarrier(t *testing.T) {
	dialer := newFakeDialer(dialOpen)
	pm := metrics.NewPrometheusMetrics()
	scheduler := newTestScheduler(dialer, 10, pm)

	var sizes []int
	var dialedAtCommit []int
	observe := func(batch, batches int, committed []ProbeResult) {
		assert.Equal(t, 3, batches)
		assert.Equal(t, len(sizes), batch)
		sizes = append(sizes, len(committed))
		dialedAtCommit = append(dialedAtCommit, len(dialer.Dialed()))
	}

	results, err := scheduler.Run(context.Background(), testAddr, specsFor(portRange(2000, 25)...), time.Second, observe)
	require.NoError(t, err)
	assert.Len(t, results, 25)

	assert.Equal(t, []int{10, 10, 5}, sizes)
	// No probe of batch k+1 starts before batch k is committed.
	assert.Equal(t, []int{10, 20, 25}, dialedAtCommit)

	for i, r := range results {
		assert.Equal(t, uint16(2000+i), r.Port)
	}
}

func TestScheduler_CancelMidBatchDiscardsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialer := newFakeDialer(dialDrop)
	var dials atomic.Int32
	dialer.onDial = func(uint16) {
		if dials.Add(1) == 10 {
			cancel()
		}
	}

	observed := 0
	scheduler := newTestScheduler(dialer, 10, nil)

	start := time.Now()
	results, err := scheduler.Run(ctx, testAddr, specsFor(portRange(3000, 25)...), 5*time.Second,
		func(int, int, []ProbeResult) { observed++ })

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Zero(t, observed)
	assert.Len(t, dialer.Dialed(), 10)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScheduler_PreCancelledContextDialsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialer := newFakeDialer(dialOpen)
	scheduler := newTestScheduler(dialer, 10, nil)

	results, err := scheduler.Run(ctx, testAddr, specsFor(80, 443), time.Second, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Empty(t, dialer.Dialed())
}

func TestScheduler_RecoversProbePanic(t *testing.T) {
	dialer := newFakeDialer(dialOpen)
	dialer.behaviors[81] = dialPanic

	scheduler := newTestScheduler(dialer, 10, nil)
	results, err := scheduler.Run(context.Background(), testAddr, specsFor(80, 81, 82), time.Second, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusOpen, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, uint16(81), results[1].Port)
	assert.Contains(t, results[1].Reason, "dialer exploded")
	assert.Equal(t, StatusOpen, results[2].Status)
}

func TestScheduler_EmptyInput(t *testing.T) {
	dialer := newFakeDialer(dialOpen)
	scheduler := newTestScheduler(dialer, 10, nil)

	results, err := scheduler.Run(context.Background(), testAddr, nil, time.Second, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewScheduler_DefaultBatchSize(t *testing.T) {
	scheduler := newTestScheduler(newFakeDialer(dialOpen), 0, nil)
	assert.Equal(t, defaultBatchSize, scheduler.batchSize)
}
