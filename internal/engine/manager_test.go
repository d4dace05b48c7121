package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/toastd/internal/model"
)

var testEpoch = time.Unix(1_700_000_000, 0)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	m        *Manager
	surfaces *fakeSurfaces
	monitor  *fakeMonitor
	clock    *testClock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 400
	cfg.Height = 100
	cfg.Margin = 10
	return cfg
}

// sequentialIDs makes surface ids predictable: toast-surface-0, toast-surface-1, ...
func sequentialIDs(m *Manager) {
	var mu sync.Mutex
	next := 0
	m.newSurfaceID = func() string {
		mu.Lock()
		defer mu.Unlock()
		id := fmt.Sprintf("%s%d", SurfacePrefix, next)
		next++
		return id
	}
}

func surfaceName(i int) string {
	return fmt.Sprintf("%s%d", SurfacePrefix, i)
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	surfaces := newFakeSurfaces()
	surfaces.readyOnCreate = true
	surfaces.defaultHeight = cfg.Height
	monitor := newFakeMonitor()

	m, err := NewManager(cfg, surfaces, monitor, discardLogger())
	require.NoError(t, err)
	surfaces.manager = m
	sequentialIDs(m)

	clock := &testClock{now: testEpoch}
	m.SetClock(clock.Now)

	return &harness{m: m, surfaces: surfaces, monitor: monitor, clock: clock}
}

func (h *harness) create(t *testing.T, title string) string {
	t.Helper()
	id, err := h.m.Create(CreateRequest{Title: title, Body: title + " body"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func (h *harness) assertInvariants(t *testing.T) {
	t.Helper()
	assert.NoError(t, h.m.checkInvariants())
}

func historyIDs(ns []model.Notification) []string {
	ids := make([]string, len(ns))
	for i, n := range ns {
		ids[i] = n.ID
	}
	return ids
}

func TestNewManager_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxWindows = 0
	_, err := NewManager(cfg, newFakeSurfaces(), newFakeMonitor(), nil)
	assert.Error(t, err)

	_, err = NewManager(testConfig(), nil, newFakeMonitor(), nil)
	assert.Error(t, err)

	m, err := NewManager(testConfig(), newFakeSurfaces(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, testConfig(), m.Config())
}

func TestManager_Create_Defaults(t *testing.T) {
	h := newHarness(t, nil)

	id, err := h.m.Create(CreateRequest{Title: "hello"})
	require.NoError(t, err)

	pending := h.m.Pending()
	require.Len(t, pending, 1)
	n := pending[0]
	assert.Equal(t, id, n.ID)
	assert.Equal(t, "new_message", n.Type)
	assert.Equal(t, 5, n.Duration)
	assert.Equal(t, testEpoch.Unix(), n.CreatedAt)

	_, err = h.m.Create(CreateRequest{Title: "custom", Duration: 1500 * time.Millisecond, Type: "alert"})
	require.NoError(t, err)
	_, err = h.m.Create(CreateRequest{Title: "sticky", Duration: -1})
	require.NoError(t, err)

	pending = h.m.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "alert", pending[1].Type)
	assert.Equal(t, 2, pending[1].Duration)
	assert.Equal(t, 0, pending[2].Duration)
}

func TestManager_Create_CallerID(t *testing.T) {
	h := newHarness(t, nil)

	want, err := model.NewID()
	require.NoError(t, err)
	id, err := h.m.Create(CreateRequest{ID: want, Title: "hello"})
	require.NoError(t, err)
	assert.Equal(t, want, id)
	assert.Equal(t, want, h.m.Pending()[0].ID)

	id, err = h.m.Create(CreateRequest{ID: want, Title: "again"})
	assert.Empty(t, id)
	assert.Equal(t, KindStateConflict, KindOf(err))

	id, err = h.m.Create(CreateRequest{ID: "not-a-ulid", Title: "bad"})
	assert.Empty(t, id)
	assert.ErrorIs(t, err, model.ErrInvalidID)
	assert.Len(t, h.m.Pending(), 1)
	h.assertInvariants(t)
}

func TestManager_ScenarioA_CapacityLimitsCreation(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 2; c.MaxIdle = 2 })

	h.create(t, "one")
	h.create(t, "two")
	h.create(t, "three")

	assert.Equal(t, 2, h.surfaces.createdCount())
	st := h.m.Status()
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 2, st.Assigned)
	assert.Equal(t, 2, st.Displayed)
	assert.Equal(t, 0, h.m.PoolStatus().PooledCount)
	h.assertInvariants(t)
}

func TestManager_ScenarioA_WithoutSynchronousReady(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 2; c.MaxIdle = 2 })
	h.surfaces.readyOnCreate = false

	first := h.create(t, "one")
	h.create(t, "two")
	h.create(t, "three")

	require.Equal(t, 2, h.surfaces.createdCount())
	st := h.m.Status()
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 2, st.Assigned)
	assert.Equal(t, 0, st.Displayed, "nothing is delivered before ready")

	require.NoError(t, h.m.SurfaceReady(surfaceName(0)))
	p, ok := h.surfaces.lastPayload(surfaceName(0))
	require.True(t, ok)
	assert.Equal(t, first, p.ID)
	assert.Equal(t, 1, h.m.Status().Displayed)
	h.assertInvariants(t)
}

func TestManager_ScenarioB_CloseHandsSurfaceToNextPending(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	x := h.create(t, "x")
	y := h.create(t, "y")
	sid := surfaceName(0)

	p, ok := h.surfaces.lastPayload(sid)
	require.True(t, ok)
	require.Equal(t, x, p.ID)

	require.NoError(t, h.m.Close(sid))

	assert.Equal(t, 1, h.surfaces.createdCount(), "no new surface for y")
	p, ok = h.surfaces.lastPayload(sid)
	require.True(t, ok)
	assert.Equal(t, y, p.ID)
	assert.Equal(t, sid, p.SurfaceID)
	assert.Equal(t, []string{x}, historyIDs(h.m.History()))
	assert.Empty(t, h.surfaces.hidden)
	h.assertInvariants(t)
}

func TestManager_ScenarioC_IdleSurfaceIsPooled(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "only")
	sid := surfaceName(0)
	require.NoError(t, h.m.Close(sid))

	ps := h.m.PoolStatus()
	assert.Equal(t, 1, ps.PooledCount)
	assert.Equal(t, 1, ps.TotalCount)
	assert.Equal(t, 0, ps.ReservedCount)
	assert.Equal(t, 4, ps.MaxWindows)
	assert.Equal(t, []string{sid}, ps.PooledIDs)
	assert.Equal(t, []string{sid}, h.surfaces.hidden)
	assert.Empty(t, h.surfaces.closed, "pooled surfaces are hidden, not destroyed")
	h.assertInvariants(t)
}

func TestManager_ReusesPooledSurface(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "first")
	sid := surfaceName(0)
	require.NoError(t, h.m.Close(sid))

	second := h.create(t, "second")

	assert.Equal(t, 1, h.surfaces.createdCount())
	assert.Equal(t, []string{sid}, h.surfaces.shown)
	assert.Equal(t, []string{sid}, h.surfaces.focused)
	p, ok := h.surfaces.lastPayload(sid)
	require.True(t, ok)
	assert.Equal(t, second, p.ID)
	assert.Equal(t, 0, h.m.PoolStatus().PooledCount)
	assert.Equal(t, [2]int{590, 10}, h.surfaces.position(sid))
	h.assertInvariants(t)
}

func TestManager_PoolIsLIFO(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "a")
	h.create(t, "b")
	require.NoError(t, h.m.Close(surfaceName(0)))
	require.NoError(t, h.m.Close(surfaceName(1)))
	require.Equal(t, []string{surfaceName(0), surfaceName(1)}, h.m.PoolStatus().PooledIDs)

	h.create(t, "c")
	assert.Equal(t, []string{surfaceName(1)}, h.surfaces.shown)
}

func TestManager_ScenarioD_StackingPositions(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "a")
	h.create(t, "b")

	assert.Equal(t, [2]int{1000 - 400 - 10, 10}, h.surfaces.position(surfaceName(0)))
	assert.Equal(t, [2]int{1000 - 400 - 10, 10 + 100 + 10}, h.surfaces.position(surfaceName(1)))
}

func TestManager_MeasuredHeightDrivesStacking(t *testing.T) {
	h := newHarness(t, nil)
	h.surfaces.heights[surfaceName(0)] = 137

	h.create(t, "tall")
	h.create(t, "next")

	assert.Equal(t, [2]int{590, 10}, h.surfaces.position(surfaceName(0)))
	assert.Equal(t, [2]int{590, 10 + 137 + 10}, h.surfaces.position(surfaceName(1)))
}

func TestManager_PoolingReflowsRemaining(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "a")
	h.create(t, "b")
	require.Equal(t, [2]int{590, 120}, h.surfaces.position(surfaceName(1)))

	require.NoError(t, h.m.Close(surfaceName(0)))
	assert.Equal(t, [2]int{590, 10}, h.surfaces.position(surfaceName(1)))
}

func TestManager_DestroysWhenPoolFull(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxIdle = 0 })

	h.create(t, "a")
	h.create(t, "b")
	h.create(t, "c")

	require.NoError(t, h.m.Close(surfaceName(1)))

	assert.Equal(t, []string{surfaceName(1)}, h.surfaces.closed)
	assert.Empty(t, h.surfaces.hidden)
	ps := h.m.PoolStatus()
	assert.Equal(t, 0, ps.PooledCount)
	assert.Equal(t, 2, ps.TotalCount)
	assert.Equal(t, [2]int{590, 10}, h.surfaces.position(surfaceName(0)))
	assert.Equal(t, [2]int{590, 120}, h.surfaces.position(surfaceName(2)))
	h.assertInvariants(t)
}

func TestManager_SurfaceReady_Idempotent(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "x")
	sid := surfaceName(0)
	before := h.m.Pending()[0].Timestamp
	require.Equal(t, testEpoch.Unix(), before)

	h.clock.Advance(time.Hour)
	require.NoError(t, h.m.SurfaceReady(sid))
	require.NoError(t, h.m.SurfaceReady(sid))

	assert.Equal(t, before, h.m.Pending()[0].Timestamp)
	assert.Equal(t, 3, h.surfaces.payloadCount(sid), "each ready re-delivers")
}

func TestManager_RoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.surfaces.readyOnCreate = false

	x := h.create(t, "x")
	sid := surfaceName(0)

	require.NoError(t, h.m.Assign(sid, x))
	require.NoError(t, h.m.SurfaceReady(sid))
	require.NoError(t, h.m.Close(sid))

	assert.Empty(t, h.m.Pending())
	assert.Equal(t, []string{x}, historyIDs(h.m.History()))

	// Further triggers never bring it back.
	h.create(t, "y")
	for _, n := range h.m.Pending() {
		assert.NotEqual(t, x, n.ID)
	}
	assert.Equal(t, []string{x}, historyIDs(h.m.History()))
	h.assertInvariants(t)
}

func TestManager_FIFOOrder(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	ids := []string{h.create(t, "a"), h.create(t, "b"), h.create(t, "c")}
	sid := surfaceName(0)
	require.NoError(t, h.m.Close(sid))
	require.NoError(t, h.m.Close(sid))

	var delivered []string
	for _, p := range h.surfaces.payloads[sid] {
		delivered = append(delivered, p.ID)
	}
	assert.Equal(t, ids, delivered)
}

func TestManager_Errors(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 2; c.MaxIdle = 2 })

	x := h.create(t, "x")
	y := h.create(t, "y")
	s0, s1 := surfaceName(0), surfaceName(1)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"close unknown surface", func() error { return h.m.Close("nope") }, ErrNotFound},
		{"ready unknown surface", func() error { return h.m.SurfaceReady("nope") }, ErrNotFound},
		{"assign unknown surface", func() error { return h.m.Assign("nope", x) }, ErrNotFound},
		{"assign unknown notification", func() error { return h.m.Assign(s0, "nope") }, ErrNotFound},
		{"assign notification held elsewhere", func() error { return h.m.Assign(s1, x) }, ErrStateConflict},
		{"expire with wrong notification", func() error { return h.m.Expire(s0, y) }, ErrStateConflict},
		{"close unknown notification", func() error { return h.m.CloseNotification("nope") }, ErrNotFound},
		{"destroyed unknown surface", func() error { return h.m.SurfaceDestroyed("nope") }, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	h.assertInvariants(t)
}

func TestManager_RetiredNotificationConflicts(t *testing.T) {
	h := newHarness(t, nil)

	x := h.create(t, "x")
	sid := surfaceName(0)
	require.NoError(t, h.m.Close(sid))

	err := h.m.Assign(sid, x)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, KindStateConflict, KindOf(err))

	assert.ErrorIs(t, h.m.CloseNotification(x), ErrStateConflict)
	assert.ErrorIs(t, h.m.Close(sid), ErrStateConflict, "pooled surface has nothing to close")
}

func TestManager_AssignDisplacesCurrent(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	x := h.create(t, "x")
	y := h.create(t, "y")
	sid := surfaceName(0)

	require.NoError(t, h.m.Assign(sid, y))

	p, ok := h.surfaces.lastPayload(sid)
	require.True(t, ok)
	assert.Equal(t, y, p.ID)

	pending := h.m.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, x, pending[0].ID)
	assert.Empty(t, pending[0].SurfaceID, "displaced notification goes back to the queue")
	assert.True(t, pending[0].Displayed())
	assert.Equal(t, 1, h.m.Status().Queued)
	h.assertInvariants(t)

	// Closing y hands the surface back to x.
	require.NoError(t, h.m.Close(sid))
	p, _ = h.surfaces.lastPayload(sid)
	assert.Equal(t, x, p.ID)
}

func TestManager_AssignToIdleSurface(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 2; c.MaxIdle = 2 })

	h.create(t, "a")
	h.create(t, "b")
	require.NoError(t, h.m.Close(surfaceName(1)))

	// A failed show leaves z queued next to the pooled surface.
	h.surfaces.failShow = errors.New("not now")
	z, err := h.m.Create(CreateRequest{Title: "z"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, h.m.Status().Queued)
	require.Equal(t, 1, h.m.PoolStatus().PooledCount)

	h.surfaces.failShow = nil
	require.NoError(t, h.m.Assign(surfaceName(1), z))

	p, ok := h.surfaces.lastPayload(surfaceName(1))
	require.True(t, ok)
	assert.Equal(t, z, p.ID)
	assert.Equal(t, 0, h.m.PoolStatus().PooledCount)
	assert.Equal(t, [2]int{590, 120}, h.surfaces.position(surfaceName(1)))
	h.assertInvariants(t)
}

func TestManager_NoDisplay(t *testing.T) {
	h := newHarness(t, nil)
	h.monitor.fail(errors.New("no outputs"))

	x, err := h.m.Create(CreateRequest{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotEmpty(t, x, "the notification stays queued")
	assert.Equal(t, 0, h.surfaces.createdCount())
	assert.Equal(t, 1, h.m.Status().Queued)

	h.monitor.fail(nil)
	h.create(t, "y")

	assert.Equal(t, 2, h.surfaces.createdCount())
	assert.Equal(t, 0, h.m.Status().Queued)
	assert.Equal(t, 2, h.m.Status().Displayed)
}

func TestManager_FallsBackToLastDisplay(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "x")
	h.monitor.fail(errors.New("monitor unplugged"))
	h.create(t, "y")

	assert.Equal(t, 2, h.surfaces.createdCount())
	assert.Equal(t, [2]int{590, 120}, h.surfaces.position(surfaceName(1)))
}

func TestManager_ShowFailureRollsBack(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "x")
	require.NoError(t, h.m.Close(surfaceName(0)))

	h.surfaces.failShow = errors.New("compositor said no")
	y, err := h.m.Create(CreateRequest{Title: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	ps := h.m.PoolStatus()
	assert.Equal(t, 1, ps.PooledCount, "surface stays pooled")
	assert.Equal(t, []string{surfaceName(0)}, ps.PooledIDs)
	pending := h.m.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, y, pending[0].ID)
	assert.False(t, pending[0].Assigned())
	h.assertInvariants(t)
}

func TestManager_HideFailureKeepsSurfaceActive(t *testing.T) {
	h := newHarness(t, nil)

	h.create(t, "x")
	h.surfaces.failHide = errors.New("cannot hide")

	err := h.m.Close(surfaceName(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	st := h.m.Status()
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 0, st.Idle)
	assert.Equal(t, 1, st.History)

	// Spare capacity is used before the visible free surface.
	h.surfaces.failHide = nil
	y := h.create(t, "y")
	assert.Equal(t, 2, h.surfaces.createdCount())
	p, _ := h.surfaces.lastPayload(surfaceName(1))
	assert.Equal(t, y, p.ID)
	h.assertInvariants(t)
}

func TestManager_PlacementOrder(t *testing.T) {
	t.Run("idle surface before a new one", func(t *testing.T) {
		h := newHarness(t, nil)
		h.create(t, "x")
		require.NoError(t, h.m.Close(surfaceName(0)))
		require.Equal(t, 1, h.m.PoolStatus().PooledCount)

		y := h.create(t, "y")
		assert.Equal(t, 1, h.surfaces.createdCount())
		p, _ := h.surfaces.lastPayload(surfaceName(0))
		assert.Equal(t, y, p.ID)
		h.assertInvariants(t)
	})

	t.Run("free active surface once capacity is spent", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })
		h.create(t, "x")
		h.surfaces.failHide = errors.New("cannot hide")
		require.Error(t, h.m.Close(surfaceName(0)))
		h.surfaces.failHide = nil

		y := h.create(t, "y")
		assert.Equal(t, 1, h.surfaces.createdCount())
		p, _ := h.surfaces.lastPayload(surfaceName(0))
		assert.Equal(t, y, p.ID)
		assert.Equal(t, 1, h.m.Status().Active)
		h.assertInvariants(t)
	})
}

func TestManager_SendFailureLeavesAssigned(t *testing.T) {
	h := newHarness(t, nil)
	h.surfaces.failSend = errors.New("content not loaded")

	_, err := h.m.Create(CreateRequest{Title: "x"})
	require.ErrorIs(t, err, ErrUnavailable)

	st := h.m.Status()
	assert.Equal(t, 1, st.Assigned)
	assert.Equal(t, 0, st.Displayed)

	h.surfaces.failSend = nil
	require.NoError(t, h.m.SurfaceReady(surfaceName(0)))
	assert.Equal(t, 1, h.m.Status().Displayed)
}

func TestManager_Callbacks(t *testing.T) {
	h := newHarness(t, nil)

	var mu sync.Mutex
	var deliveries []Delivery
	var retirements []Retirement
	h.m.SetDeliveredCallback(func(d Delivery) {
		mu.Lock()
		defer mu.Unlock()
		deliveries = append(deliveries, d)
	})
	h.m.SetRetiredCallback(func(r Retirement) {
		mu.Lock()
		defer mu.Unlock()
		retirements = append(retirements, r)
	})

	x := h.create(t, "x")
	sid := surfaceName(0)
	require.NoError(t, h.m.SurfaceReady(sid))
	require.NoError(t, h.m.Expire(sid, x))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deliveries, 2)
	assert.True(t, deliveries[0].First)
	assert.False(t, deliveries[1].First)
	assert.Equal(t, sid, deliveries[0].SurfaceID)
	assert.Equal(t, x, deliveries[0].Notification.ID)

	require.Len(t, retirements, 1)
	assert.Equal(t, x, retirements[0].Notification.ID)
	assert.Equal(t, ReasonExpired, retirements[0].Reason)
}

func TestManager_CallbackMayReenter(t *testing.T) {
	h := newHarness(t, nil)

	// Dismiss every toast the moment it is first shown.
	h.m.SetDeliveredCallback(func(d Delivery) {
		if d.First {
			assert.NoError(t, h.m.Expire(d.SurfaceID, d.Notification.ID))
		}
	})

	h.create(t, "a")
	h.create(t, "b")

	assert.Empty(t, h.m.Pending())
	assert.Len(t, h.m.History(), 2)
	h.assertInvariants(t)
}

func TestManager_CloseNotification(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	x := h.create(t, "x")
	y := h.create(t, "y")

	require.NoError(t, h.m.CloseNotification(y))
	pending := h.m.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, x, pending[0].ID)

	require.NoError(t, h.m.CloseNotification(x))
	assert.Empty(t, h.m.Pending())
	assert.Equal(t, []string{y, x}, historyIDs(h.m.History()))
	assert.Equal(t, 1, h.m.PoolStatus().PooledCount)
	h.assertInvariants(t)
}

func TestManager_SurfaceDestroyed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	var reasons []RetireReason
	h.m.SetRetiredCallback(func(r Retirement) { reasons = append(reasons, r.Reason) })

	h.create(t, "x")
	y := h.create(t, "y")

	require.NoError(t, h.m.SurfaceDestroyed(surfaceName(0)))

	assert.Equal(t, []RetireReason{ReasonDestroyed}, reasons)
	assert.Equal(t, 2, h.surfaces.createdCount(), "freed capacity is used for y")
	p, ok := h.surfaces.lastPayload(surfaceName(1))
	require.True(t, ok)
	assert.Equal(t, y, p.ID)
	h.assertInvariants(t)
}

func TestManager_Shutdown(t *testing.T) {
	h := newHarness(t, nil)

	var reasons []RetireReason
	h.m.SetRetiredCallback(func(r Retirement) { reasons = append(reasons, r.Reason) })

	h.create(t, "x")
	h.create(t, "y")
	require.NoError(t, h.m.Close(surfaceName(1)))

	require.NoError(t, h.m.Shutdown())

	assert.ElementsMatch(t, []string{surfaceName(0), surfaceName(1)}, h.surfaces.closed)
	assert.Equal(t, []RetireReason{ReasonDismissed, ReasonClosed}, reasons)
	assert.Equal(t, 0, h.m.PoolStatus().TotalCount)
}

func TestManager_CleanupTrimsHistory(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.MaxWindows = 1
		c.MaxIdle = 1
		c.MaxHistorySize = 2
	})

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		ids = append(ids, h.create(t, title))
		require.NoError(t, h.m.Close(surfaceName(0)))
	}
	require.Len(t, h.m.History(), 3, "no trimming before the interval elapses")

	h.clock.Advance(30 * time.Second)
	h.create(t, "d")
	require.Len(t, h.m.History(), 3)

	h.clock.Advance(time.Minute)
	h.create(t, "e")
	assert.Equal(t, ids[1:], historyIDs(h.m.History()))
}

func TestManager_CleanupPurgesDisplayedOnly(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	var retired []Retirement
	h.m.SetRetiredCallback(func(r Retirement) { retired = append(retired, r) })

	a := h.create(t, "a") // displayed at the epoch
	b := h.create(t, "b") // never displayed

	h.clock.Advance(25 * time.Hour)
	c := h.create(t, "c")

	require.Len(t, retired, 1)
	assert.Equal(t, a, retired[0].Notification.ID)
	assert.Equal(t, ReasonPurged, retired[0].Reason)
	assert.Empty(t, h.m.History(), "purged notifications are not archived")

	pending := h.m.Pending()
	assert.Equal(t, []string{b, c}, historyIDs(pending))

	// The purged notification's surface is handed to b.
	p, ok := h.surfaces.lastPayload(surfaceName(0))
	require.True(t, ok)
	assert.Equal(t, b, p.ID)
	h.assertInvariants(t)
}

func TestManager_CleanupPurgeAll(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.MaxWindows = 1
		c.MaxIdle = 1
		c.RetentionPolicy = PurgeAll
	})

	h.create(t, "a")
	h.create(t, "b")

	h.clock.Advance(25 * time.Hour)
	c := h.create(t, "c")

	pending := h.m.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, c, pending[0].ID)
	p, _ := h.surfaces.lastPayload(surfaceName(0))
	assert.Equal(t, c, p.ID)
}

func TestManager_CloseDuringCreationConflicts(t *testing.T) {
	ms := &mockSurfaces{}
	m, err := NewManager(testConfig(), ms, newFakeMonitor(), discardLogger())
	require.NoError(t, err)
	sequentialIDs(m)
	sid := surfaceName(0)

	ms.On("CreateSurface", sid, "/notification", 400, 100).Run(func(mock.Arguments) {
		assert.ErrorIs(t, m.Close(sid), ErrStateConflict)
		assert.NoError(t, m.SurfaceReady(sid), "early ready is remembered")
	}).Return(nil).Once()
	ms.On("MeasuredSize", sid).Return(400, 100, nil).Once()
	ms.On("SetPosition", sid, 590, 10).Return(nil).Once()
	ms.On("SendPayload", sid, mock.AnythingOfType("model.Notification")).Return(nil).Once()

	_, err = m.Create(CreateRequest{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Status().Displayed)
	ms.AssertExpectations(t)
}

func TestManager_DestroyedDuringCreationClosesOrphan(t *testing.T) {
	ms := &mockSurfaces{}
	m, err := NewManager(testConfig(), ms, newFakeMonitor(), discardLogger())
	require.NoError(t, err)
	sequentialIDs(m)
	s0, s1 := surfaceName(0), surfaceName(1)

	ms.On("CreateSurface", s0, "/notification", 400, 100).Run(func(mock.Arguments) {
		assert.NoError(t, m.SurfaceDestroyed(s0))
	}).Return(nil).Once()
	// Freed capacity is reserved again for the still-queued notification.
	ms.On("CreateSurface", s1, "/notification", 400, 100).Return(nil).Once()
	ms.On("MeasuredSize", s1).Return(400, 100, nil).Once()
	ms.On("SetPosition", s1, 590, 10).Return(nil).Once()
	ms.On("MeasuredSize", s0).Return(400, 100, nil).Once()
	ms.On("Close", s0).Return(nil).Once()

	_, err = m.Create(CreateRequest{Title: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.PoolStatus().TotalCount)
	st := m.Status()
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 1, st.Assigned)
	require.NoError(t, m.checkInvariants())
	ms.AssertExpectations(t)
}

func TestManager_CreateFailureReleasesReservation(t *testing.T) {
	ms := &mockSurfaces{}
	m, err := NewManager(testConfig(), ms, newFakeMonitor(), discardLogger())
	require.NoError(t, err)

	ms.On("CreateSurface", mock.AnythingOfType("string"), "/notification", 400, 100).
		Return(errors.New("compositor gone")).Once()

	id, err := m.Create(CreateRequest{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotEmpty(t, id)

	ps := m.PoolStatus()
	assert.Equal(t, 0, ps.ReservedCount)
	assert.Equal(t, 0, ps.TotalCount)
	assert.Equal(t, 1, m.Status().Queued)
	ms.AssertExpectations(t)
}

func TestManager_MeasureFailureUsesNominalHeight(t *testing.T) {
	ms := &mockSurfaces{}
	m, err := NewManager(testConfig(), ms, newFakeMonitor(), discardLogger())
	require.NoError(t, err)
	sequentialIDs(m)
	s0, s1 := surfaceName(0), surfaceName(1)

	ms.On("CreateSurface", mock.AnythingOfType("string"), "/notification", 400, 100).Return(nil)
	ms.On("MeasuredSize", mock.AnythingOfType("string")).Return(0, 0, errors.New("unmapped"))
	ms.On("SetPosition", s0, 590, 10).Return(nil).Once()
	ms.On("SetPosition", s1, 590, 120).Return(nil).Once()

	_, err = m.Create(CreateRequest{Title: "a"})
	require.NoError(t, err)
	_, err = m.Create(CreateRequest{Title: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Status().Assigned)
	assert.Equal(t, 0, m.Status().Displayed, "not ready yet")
	ms.AssertExpectations(t)
}

func TestManager_ConcurrentProducersRespectCapacity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 3; c.MaxIdle = 3 })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := h.m.Create(CreateRequest{Title: "load"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	h.surfaces.mu.Lock()
	maxLive := h.surfaces.maxLive
	created := len(h.surfaces.created)
	h.surfaces.mu.Unlock()
	assert.LessOrEqual(t, maxLive, 3)
	assert.LessOrEqual(t, created, 3)
	h.assertInvariants(t)

	// Drain with concurrent closers.
	for range 200 {
		if len(h.m.Pending()) == 0 {
			break
		}
		var cw sync.WaitGroup
		for i := range created {
			cw.Add(1)
			go func(sid string) {
				defer cw.Done()
				_ = h.m.Close(sid)
			}(surfaceName(i))
		}
		cw.Wait()
		require.NoError(t, h.m.checkInvariants())
	}

	assert.Empty(t, h.m.Pending())
	assert.Len(t, h.m.History(), 80)
	assert.Equal(t, created, h.m.PoolStatus().PooledCount)
}

func TestManager_StalePayloadIsRedelivered(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxWindows = 1; c.MaxIdle = 1 })

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.surfaces.mu.Lock()
	h.surfaces.sendGate = func(id string, n model.Notification) {
		if n.Title != "x" {
			return
		}
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	h.surfaces.mu.Unlock()

	done := make(chan string)
	go func() {
		id, err := h.m.Create(CreateRequest{Title: "x"})
		assert.NoError(t, err)
		done <- id
	}()
	<-entered

	sid := surfaceName(0)
	y := h.create(t, "y")
	require.NoError(t, h.m.Close(sid))

	last, ok := h.surfaces.lastPayload(sid)
	require.True(t, ok)
	require.Equal(t, y, last.ID)

	// The payload for x lands after y's.
	close(release)
	x := <-done

	last, ok = h.surfaces.lastPayload(sid)
	require.True(t, ok)
	assert.Equal(t, y, last.ID, "surface shows the notification it is assigned")
	assert.Equal(t, []string{x}, historyIDs(h.m.History()))

	pending := h.m.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, y, pending[0].ID)
	assert.Equal(t, sid, pending[0].SurfaceID)
	assert.True(t, pending[0].Displayed())
	h.assertInvariants(t)
}
