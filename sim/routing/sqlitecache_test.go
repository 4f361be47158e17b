package routing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.db")
	oracle := &countingRouter{inner: &fixedRouter{leg: Leg{DistanceMeters: 5000, DurationSecs: 450}}}
	from := Point{Lat: 18.52, Lon: 73.85}
	to := Point{Lat: 18.60, Lon: 73.90}

	cache, err := OpenSQLiteCache(path, oracle)
	assert.NoError(t, err)
	leg, err := cache.Route(context.Background(), from, to)
	assert.NoError(t, err)
	assert.Equal(t, 450.0, leg.DurationSecs)
	assert.NoError(t, cache.Close())

	// Reopen over a fresh oracle; the stored leg must be served without a
	// single oracle call.
	oracle2 := &countingRouter{inner: &PlaneRouter{}}
	cache2, err := OpenSQLiteCache(path, oracle2)
	assert.NoError(t, err)
	defer cache2.Close()

	leg2, err := cache2.Route(context.Background(), from, to)
	assert.NoError(t, err)
	assert.Equal(t, 450.0, leg2.DurationSecs)
	assert.Equal(t, 0, oracle2.count())
}

func TestSQLiteCache_SkipsApproximateLegs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.db")
	oracle := &countingRouter{inner: &PlaneRouter{}} // always approximate
	from := Point{Lat: 18.52, Lon: 73.85}
	to := Point{Lat: 18.60, Lon: 73.90}

	cache, err := OpenSQLiteCache(path, oracle)
	assert.NoError(t, err)
	defer cache.Close()

	_, _ = cache.Route(context.Background(), from, to)
	_, _ = cache.Route(context.Background(), from, to)

	// Fallback estimates are never persisted, so every lookup goes through.
	assert.Equal(t, 2, oracle.count())
}

func TestSQLiteCache_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.db")
	oracle := &countingRouter{inner: &fixedRouter{leg: Leg{DistanceMeters: 5000, DurationSecs: 450}}}
	from := Point{Lat: 18.52, Lon: 73.85}
	to := Point{Lat: 18.60, Lon: 73.90}

	cache, err := OpenSQLiteCache(path, oracle)
	assert.NoError(t, err)
	defer cache.Close()

	_, _ = cache.Route(context.Background(), from, to)
	assert.NoError(t, cache.Clear(context.Background()))
	_, _ = cache.Route(context.Background(), from, to)

	assert.Equal(t, 2, oracle.count())
}

// fixedRouter returns a constant non-approximate leg.
type fixedRouter struct {
	leg Leg
}

func (f *fixedRouter) Route(ctx context.Context, from, to Point) (Leg, error) {
	return f.leg, nil
}
