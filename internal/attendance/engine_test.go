package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewatch/internal/apperr"
)

var testPerson = Person{ID: 1, FirstName: "Juan", LastName: "Cruz", Rank: "FO1", StationID: 7}

// newTestEngine returns an engine with a fixed clock: work starts 08:00,
// 15 minutes grace, 60 second cooldown.
func newTestEngine(store Store, now time.Time) *Engine {
	e := NewEngine(store, 60*time.Second, 8, 0, 15*time.Minute)
	e.now = func() time.Time { return now }
	return e
}

func at(hour, min int) time.Time {
	return time.Date(2024, 1, 10, hour, min, 0, 0, time.UTC)
}

func TestRecordTimeIn(t *testing.T) {
	ctx := context.Background()

	t.Run("creates record with present status", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(7, 55))

		rec, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(7, 55), Mode: Auto})
		require.NoError(t, err)
		require.NotNil(t, rec.TimeIn)
		assert.Equal(t, Present, rec.Status)
		assert.Equal(t, "2024-01-10", rec.Date)
		assert.True(t, rec.AutoCaptured)
		assert.True(t, rec.Approved)
	})

	t.Run("within grace period is present", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 14))

		rec, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 14), Mode: Auto})
		require.NoError(t, err)
		assert.Equal(t, Present, rec.Status)
	})

	t.Run("after grace period is late", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 30))

		rec, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 30), Mode: Auto})
		require.NoError(t, err)
		assert.Equal(t, Late, rec.Status)
	})

	t.Run("second time-in same day is duplicate", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Manual, Approved: true})
		require.NoError(t, err)

		// Replaying the identical event must fail, never overwrite.
		_, err = engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(9, 0), Mode: Manual, Approved: true})
		require.Error(t, err)
		assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))

		rec, _ := store.GetRecord(ctx, 1, "2024-01-10")
		assert.Equal(t, at(8, 0), *rec.TimeIn, "original time-in must be untouched")
	})

	t.Run("unknown person", func(t *testing.T) {
		store := newMemStore()
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 99, At: at(8, 0), Mode: Auto})
		require.Error(t, err)
		assert.Equal(t, apperr.PersonNotFound, apperr.KindOf(err))
	})
}

func TestRecordTimeOut(t *testing.T) {
	ctx := context.Background()

	t.Run("before any time-in is invalid", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(17, 0))

		_, err := engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(17, 0), Mode: Manual, Approved: true})
		require.Error(t, err)
		assert.Equal(t, apperr.InvalidTransition, apperr.KindOf(err))
	})

	t.Run("after time-in succeeds", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
		require.NoError(t, err)

		engine.now = func() time.Time { return at(17, 0) }
		rec, err := engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(17, 0), Mode: Auto})
		require.NoError(t, err)
		require.NotNil(t, rec.TimeOut)
		assert.Equal(t, 9*time.Hour, rec.Duration())
	})

	t.Run("second time-out is duplicate", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
		require.NoError(t, err)

		engine.now = func() time.Time { return at(17, 0) }
		_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(17, 0), Mode: Auto})
		require.NoError(t, err)

		engine.now = func() time.Time { return at(18, 0) }
		_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(18, 0), Mode: Auto})
		require.Error(t, err)
		assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))
	})
}

func TestCooldown(t *testing.T) {
	ctx := context.Background()

	t.Run("auto event within cooldown is rejected", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
		require.NoError(t, err)

		// Next camera frame 30 seconds later.
		engine.now = func() time.Time { return at(8, 0).Add(30 * time.Second) }
		_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: engine.now(), Mode: Auto})
		require.Error(t, err)
		assert.Equal(t, apperr.Cooldown, apperr.KindOf(err))

		// No time-out must have been written.
		rec, _ := store.GetRecord(ctx, 1, "2024-01-10")
		assert.Nil(t, rec.TimeOut)
	})

	t.Run("auto event after cooldown is accepted", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
		require.NoError(t, err)

		engine.now = func() time.Time { return at(8, 2) }
		_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(8, 2), Mode: Auto})
		require.NoError(t, err)
	})

	t.Run("manual events bypass cooldown", func(t *testing.T) {
		store := newMemStore(testPerson)
		engine := newTestEngine(store, at(8, 0))

		_, err := engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
		require.NoError(t, err)

		engine.now = func() time.Time { return at(8, 0).Add(10 * time.Second) }
		_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: engine.now(), Mode: Manual, Approved: true})
		require.NoError(t, err)
	})
}

func TestNextEvent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(testPerson)
	engine := newTestEngine(store, at(8, 0))

	event, err := engine.NextEvent(ctx, 1, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, TimeIn, event)

	_, err = engine.RecordTimeIn(ctx, Event{PersonID: 1, At: at(8, 0), Mode: Auto})
	require.NoError(t, err)

	event, err = engine.NextEvent(ctx, 1, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, TimeOut, event)

	engine.now = func() time.Time { return at(17, 0) }
	_, err = engine.RecordTimeOut(ctx, Event{PersonID: 1, At: at(17, 0), Mode: Auto})
	require.NoError(t, err)

	_, err = engine.NextEvent(ctx, 1, "2024-01-10")
	require.Error(t, err)
	assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))
}
