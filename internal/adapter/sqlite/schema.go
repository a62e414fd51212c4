package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS baseline_observations (
    location_id TEXT NOT NULL,
    obs_date TEXT NOT NULL,
    value REAL NOT NULL,
    unit TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (location_id, obs_date)
);

CREATE TABLE IF NOT EXISTS daily_statistics (
    location_id TEXT NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    min REAL NOT NULL,
    max REAL NOT NULL,
    p10 REAL NOT NULL,
    p25 REAL NOT NULL,
    p50 REAL NOT NULL,
    p75 REAL NOT NULL,
    p90 REAL NOT NULL,
    mean REAL NOT NULL,
    count INTEGER NOT NULL,
    unit TEXT NOT NULL,
    PRIMARY KEY (location_id, month, day)
);

CREATE TABLE IF NOT EXISTS daily_observations (
    location_id TEXT NOT NULL,
    obs_date TEXT NOT NULL,
    value REAL NOT NULL,
    unit TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (location_id, obs_date)
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    target_date TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    status TEXT NOT NULL,
    locations INTEGER NOT NULL DEFAULT 0,
    with_current INTEGER NOT NULL DEFAULT 0,
    with_statistics INTEGER NOT NULL DEFAULT 0,
    backfilled INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_daily_observations_date ON daily_observations(obs_date);
CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at);
`
