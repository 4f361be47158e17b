package routing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteCache is a persistent route cache layered in front of another Router.
// Legs survive process restarts, which matters for the OSRM backend where a
// cold cache means thousands of HTTP round trips per run.
type SQLiteCache struct {
	inner Router
	db    *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS route_cache (
	origin_lat REAL NOT NULL,
	origin_lon REAL NOT NULL,
	dest_lat REAL NOT NULL,
	dest_lon REAL NOT NULL,
	distance_meters REAL NOT NULL,
	duration_secs REAL NOT NULL,
	PRIMARY KEY (origin_lat, origin_lon, dest_lat, dest_lon)
)`

// OpenSQLiteCache opens (creating if needed) the cache database at path and
// wraps inner with it.
func OpenSQLiteCache(path string, inner Router) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open route cache %s: %w", path, err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create route cache schema: %w", err)
	}
	return &SQLiteCache{inner: inner, db: db}, nil
}

func (c *SQLiteCache) Route(ctx context.Context, from, to Point) (Leg, error) {
	oLat, oLon := RoundCoord(from.Lat), RoundCoord(from.Lon)
	dLat, dLon := RoundCoord(to.Lat), RoundCoord(to.Lon)

	var leg Leg
	err := c.db.QueryRowContext(ctx,
		`SELECT distance_meters, duration_secs FROM route_cache
		 WHERE origin_lat = ? AND origin_lon = ? AND dest_lat = ? AND dest_lon = ?`,
		oLat, oLon, dLat, dLon,
	).Scan(&leg.DistanceMeters, &leg.DurationSecs)
	if err == nil {
		return leg, nil
	}
	if err != sql.ErrNoRows {
		return Leg{}, fmt.Errorf("route cache query: %w", err)
	}

	leg, err = c.inner.Route(ctx, from, to)
	if err != nil {
		return Leg{}, err
	}

	// Approximate legs are not persisted: the oracle may recover later.
	if !leg.Approximate {
		if _, err := c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO route_cache
			 (origin_lat, origin_lon, dest_lat, dest_lon, distance_meters, duration_secs)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			oLat, oLon, dLat, dLon, leg.DistanceMeters, leg.DurationSecs,
		); err != nil {
			logrus.Warnf("route cache insert failed: %v", err)
		}
	}

	return leg, nil
}

// Clear removes all cached legs.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM route_cache`); err != nil {
		return fmt.Errorf("clear route cache: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
