package store

// Timestamps are stored as unix seconds throughout; SQLite has no native
// time type and integer seconds keep range queries index-friendly.
const schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          INTEGER NOT NULL,
	temperature REAL NOT NULL,
	ambient     REAL NOT NULL,
	ph          REAL NOT NULL,
	tds         REAL NOT NULL,
	heater_on   INTEGER NOT NULL,
	co2_on      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sensor_ts ON sensor_readings(ts);

CREATE TABLE IF NOT EXISTS pid_performance (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            INTEGER NOT NULL,
	controller    TEXT NOT NULL,
	kp            REAL NOT NULL,
	ki            REAL NOT NULL,
	kd            REAL NOT NULL,
	settling_time REAL NOT NULL,
	overshoot     REAL NOT NULL,
	steady_error  REAL NOT NULL,
	temperature   REAL NOT NULL,
	ambient       REAL NOT NULL,
	tds           REAL NOT NULL,
	ph            REAL NOT NULL,
	hour          INTEGER NOT NULL,
	season        INTEGER NOT NULL,
	tank_volume   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_perf_key ON pid_performance(controller, season, ts);

CREATE TABLE IF NOT EXISTS water_changes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	start_ts   INTEGER NOT NULL,
	end_ts     INTEGER NOT NULL,
	volume     REAL NOT NULL,
	temp_before REAL NOT NULL,
	temp_after  REAL NOT NULL,
	ph_before   REAL NOT NULL,
	ph_after    REAL NOT NULL,
	tds_before  REAL NOT NULL,
	tds_after   REAL NOT NULL,
	duration_min INTEGER NOT NULL,
	completed   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wc_end ON water_changes(end_ts);

CREATE TABLE IF NOT EXISTS filter_maintenance (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	ts             INTEGER NOT NULL,
	filter_type    TEXT NOT NULL,
	days_since_last INTEGER NOT NULL,
	tds_before     REAL NOT NULL,
	tds_after      REAL NOT NULL,
	notes          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fm_ts ON filter_maintenance(ts);

CREATE TABLE IF NOT EXISTS gain_predictions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         INTEGER NOT NULL,
	controller TEXT NOT NULL,
	season     INTEGER NOT NULL,
	kp         REAL NOT NULL,
	ki         REAL NOT NULL,
	kd         REAL NOT NULL,
	confidence REAL NOT NULL,
	model      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_predictions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	ts             INTEGER NOT NULL,
	days_remaining REAL NOT NULL,
	total_days     REAL NOT NULL,
	days_since     REAL NOT NULL,
	tds            REAL NOT NULL,
	tds_rate       REAL NOT NULL,
	confidence     REAL NOT NULL,
	model          TEXT NOT NULL,
	actual_days    REAL,
	realized_ts    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_cycle_open ON cycle_predictions(actual_days) WHERE actual_days IS NULL;
`
