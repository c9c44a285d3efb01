package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      session_key,
                      start_time,
                      device_type,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    session_key,
    start_time,
    device_type,
    config
FROM sessions
ORDER BY start_time`

	insertMeasurementSQL = `
INSERT INTO measurements (session_id,
                          timestamp,
                          band,
                          frequency,
                          power,
                          latitude,
                          longitude,
                          altitude)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectMeasurementsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    band,
    frequency,
    power,
    latitude,
    longitude,
    altitude
FROM measurements
WHERE
    session_id = ?
ORDER BY id`
)

//go:embed schema.sql
var schemaSQL string
