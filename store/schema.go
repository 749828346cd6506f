/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package store

// schema is the complete DDL for the inventory store. The uniqueness
// constraints are the durable contract: downstream reporting and the
// incremental scan cache both depend on them.
const schema = `
CREATE TABLE IF NOT EXISTS [tasks] (
    [id]   INTEGER PRIMARY KEY,
    [name] TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS [task_runs] (
    [id]              INTEGER PRIMARY KEY,
    [task_id]         INTEGER NOT NULL REFERENCES [tasks]([id]),
    [run_date]        TEXT NOT NULL,
    [cycle]           INTEGER NOT NULL,
    [run_type]        TEXT NOT NULL,
    [job_id]          TEXT NOT NULL DEFAULT '',
    [status]          TEXT NOT NULL DEFAULT '',
    [exit_code]       INTEGER NOT NULL DEFAULT 0,
    [attempt]         INTEGER NOT NULL DEFAULT 0,
    [host]            TEXT NOT NULL DEFAULT '',
    [logfile]         TEXT NOT NULL DEFAULT '',
    [started_at]      INTEGER,
    [finished_at]     INTEGER,
    [runtime_seconds] REAL NOT NULL DEFAULT 0,
    [updated_at]      INTEGER NOT NULL,
    UNIQUE ([task_id], [run_date], [cycle], [run_type])
);

CREATE TABLE IF NOT EXISTS [obs_space_categories] (
    [id]   INTEGER PRIMARY KEY,
    [name] TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS [obs_spaces] (
    [id]          INTEGER PRIMARY KEY,
    [name]        TEXT NOT NULL,
    [category_id] INTEGER NOT NULL REFERENCES [obs_space_categories]([id]),
    UNIQUE ([name], [category_id])
);

CREATE TABLE IF NOT EXISTS [variables] (
    [id]            INTEGER PRIMARY KEY,
    [name]          TEXT NOT NULL UNIQUE,
    [data_type]     TEXT,
    [rank]          INTEGER,
    [units]         TEXT,
    [valid_min]     REAL,
    [valid_max]     REAL,
    [min_variation] REAL
);

CREATE TABLE IF NOT EXISTS [obs_space_contents] (
    [obs_space_id] INTEGER NOT NULL REFERENCES [obs_spaces]([id]),
    [variable_id]  INTEGER NOT NULL REFERENCES [variables]([id]),
    [group_name]   TEXT NOT NULL,
    UNIQUE ([obs_space_id], [variable_id], [group_name])
);

CREATE TABLE IF NOT EXISTS [file_inventory] (
    [id]            INTEGER PRIMARY KEY,
    [task_run_id]   INTEGER NOT NULL REFERENCES [task_runs]([id]),
    [obs_space_id]  INTEGER REFERENCES [obs_spaces]([id]),
    [file_path]     TEXT NOT NULL,
    [status]        TEXT NOT NULL,
    [size_bytes]    INTEGER NOT NULL DEFAULT 0,
    [mtime_ns]      INTEGER NOT NULL DEFAULT 0,
    [obs_count]     INTEGER NOT NULL DEFAULT 0,
    [error_message] TEXT NOT NULL DEFAULT '',
    [ingested_at]   INTEGER NOT NULL DEFAULT 0,
    [properties]    BLOB,
    UNIQUE ([task_run_id], [file_path])
);
CREATE INDEX IF NOT EXISTS [idx_file_inventory_status] ON [file_inventory]([status]);
CREATE INDEX IF NOT EXISTS [idx_file_inventory_path] ON [file_inventory]([file_path]);

CREATE TABLE IF NOT EXISTS [file_source_inputs] (
    [file_id]     INTEGER NOT NULL REFERENCES [file_inventory]([id]) ON DELETE CASCADE,
    [source_path] TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS [idx_file_source_inputs_file] ON [file_source_inputs]([file_id]);

CREATE TABLE IF NOT EXISTS [file_data_domain] (
    [file_id]    INTEGER NOT NULL UNIQUE REFERENCES [file_inventory]([id]) ON DELETE CASCADE,
    [time_start] INTEGER,
    [time_end]   INTEGER,
    [lat_min]    REAL,
    [lat_max]    REAL,
    [lon_min]    REAL,
    [lon_max]    REAL,
    [depth_min]  REAL,
    [depth_max]  REAL
);

CREATE TABLE IF NOT EXISTS [file_variable_statistics] (
    [file_id]     INTEGER NOT NULL REFERENCES [file_inventory]([id]) ON DELETE CASCADE,
    [variable_id] INTEGER NOT NULL REFERENCES [variables]([id]),
    [min]         REAL NOT NULL,
    [max]         REAL NOT NULL,
    [mean]        REAL NOT NULL,
    [std]         REAL NOT NULL,
    UNIQUE ([file_id], [variable_id])
);

CREATE TABLE IF NOT EXISTS [scans] (
    [id]          TEXT PRIMARY KEY,
    [started_at]  INTEGER NOT NULL,
    [finished_at] INTEGER NOT NULL,
    [processed]   INTEGER NOT NULL,
    [changed]     INTEGER NOT NULL,
    [skipped]     INTEGER NOT NULL,
    [failed]      INTEGER NOT NULL
);
`
