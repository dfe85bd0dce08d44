// PACKAGE STORAGE PERSISTS CONTROLLER STATE: PER-CHANNEL CONFIGURATION, THE GLOBAL HYDRAULIC
// LOCK, FLOW CALIBRATION, AND TASK-LIFECYCLE HISTORY.
//
// GROUNDED ON internal/storage/db.go'S sql.DB + PRAGMA + CREATE-TABLE-IF-NOT-EXISTS STYLE, JSON
// BLOB COLUMNS FOR NESTED STRUCTS, AND A schema_version BOOKKEEPING TABLE. THE TEACHER'S
// IN-MEMORY Jobs MAP CACHE IS NOT REUSED HERE: CHANNEL STATE ALREADY LIVES IN
// internal/channelstore'S COARSE-LOCKED ARRAY, SO STORAGE ONLY NEEDS TO LOAD AT STARTUP AND
// SAVE ON MUTATION, NOT MAINTAIN A SEPARATE CACHE.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/utils"
)

// STORE IS THE SQLITE-BACKED PERSISTENCE LAYER. IT IMPLEMENTS
// executor.HistoryRecorder, AND ITS RainfallSince BACKS THE CONTROLLER'S RAIN LOOKUP.
//
// history WRITES ARE SUBMITTED THROUGH writePool RATHER THAN RUN INLINE: RecordTaskLifecycle IS
// CALLED FROM THE EXECUTOR'S HOT PATH (EVERY STATE TRANSITION OF AN ACTIVE WATERING TASK), AND A
// SLOW DISK FSYNC THERE SHOULD NEVER STALL THE VALVE STATE MACHINE. THE POOL'S BUFFER-FULL
// FALLBACK (DIRECT INLINE EXECUTION) MEANS A FULL BUFFER DOES NOT DROP AN EVENT; AN EVENT SUBMITTED
// AFTER Close, OR STILL BUFFERED WHEN Close STOPS THE WORKERS, IS NOT WRITTEN.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	logger   *utils.Logger
	writePool *utils.WorkerPool
}

// OPEN OPENS (OR CREATES) THE SQLITE DATABASE AT dbPath AND APPLIES THE SCHEMA
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: utils.GetLogger(), writePool: utils.NewWorkerPool(2)}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.writePool.Stop()
	s.writePool.WaitWithTimeout(5 * time.Second)
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY,
			display_name TEXT,
			config TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS global_lock (
			id TEXT PRIMARY KEY DEFAULT 'global',
			level TEXT NOT NULL,
			reason TEXT,
			locked_at_epoch INTEGER,
			retry_after_epoch INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS calibration (
			id TEXT PRIMARY KEY DEFAULT 'global',
			pulses_per_liter INTEGER NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			channel_id INTEGER NOT NULL,
			task_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			requested_ml REAL,
			delivered_ml REAL,
			reason TEXT,
			timestamp_epoch INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_channel ON history(channel_id, timestamp_epoch)`,
		`CREATE TABLE IF NOT EXISTS rainfall_samples (
			id TEXT PRIMARY KEY,
			mm REAL NOT NULL,
			timestamp_epoch INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rainfall_timestamp ON rainfall_samples(timestamp_epoch)`,
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: create tables: %w", err)
		}
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (1, datetime('now'))`)
	return err
}

// SAVECHANNEL UPSERTS ONE CHANNEL'S FULL CONFIGURATION AS A JSON BLOB
func (s *Store) SaveChannel(ch models.Channel) error {
	blob, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("storage: marshal channel %d: %w", ch.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO channels (id, display_name, config, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
			config = excluded.config, updated_at = CURRENT_TIMESTAMP`,
		ch.ID, ch.DisplayName, string(blob))
	if err != nil {
		return fmt.Errorf("storage: save channel %d: %w", ch.ID, err)
	}
	return nil
}

// LOADCHANNELS RETURNS ALL PERSISTED CHANNEL RECORDS, KEYED BY ID
func (s *Store) LoadChannels() (map[int]models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, config FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("storage: load channels: %w", err)
	}
	defer rows.Close()

	out := make(map[int]models.Channel)
	for rows.Next() {
		var id int
		var blob string
		if err := rows.Scan(&id, &blob); err != nil {
			s.logger.Warn("storage: error scanning channel row", map[string]any{"error": err.Error()})
			continue
		}
		var ch models.Channel
		if err := json.Unmarshal([]byte(blob), &ch); err != nil {
			s.logger.Warn("storage: error unmarshaling channel", map[string]any{"id": id, "error": err.Error()})
			continue
		}
		out[id] = ch
	}
	return out, nil
}

// SAVEGLOBALLOCK PERSISTS THE GLOBAL HYDRAULIC LOCK SO A HARD LOCK SURVIVES REBOOT
func (s *Store) SaveGlobalLock(lock models.HydraulicLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO global_lock (id, level, reason, locked_at_epoch, retry_after_epoch)
		VALUES ('global', ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET level = excluded.level, reason = excluded.reason,
			locked_at_epoch = excluded.locked_at_epoch, retry_after_epoch = excluded.retry_after_epoch`,
		string(lock.Level), string(lock.Reason), lock.LockedAtEpoch, lock.RetryAfterEpoch)
	return err
}

// LOADGLOBALLOCK RETURNS THE PERSISTED GLOBAL LOCK, OR LockNone IF NONE IS STORED
func (s *Store) LoadGlobalLock() (models.HydraulicLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var level, reason string
	var lockedAt, retryAfter sql.NullInt64
	err := s.db.QueryRow(`SELECT level, reason, locked_at_epoch, retry_after_epoch FROM global_lock WHERE id = 'global'`).
		Scan(&level, &reason, &lockedAt, &retryAfter)
	if err == sql.ErrNoRows {
		return models.HydraulicLock{Level: models.LockNone}, nil
	}
	if err != nil {
		return models.HydraulicLock{}, err
	}
	return models.HydraulicLock{
		Level: models.LockLevel(level), Reason: models.LockReason(reason),
		LockedAtEpoch: lockedAt.Int64, RetryAfterEpoch: retryAfter.Int64,
	}, nil
}

// SAVECALIBRATION PERSISTS THE GLOBAL PULSE-PER-LITER CALIBRATION AND TIMEZONE
func (s *Store) SaveCalibration(pulsesPerLiter uint32, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO calibration (id, pulses_per_liter, timezone, updated_at)
		VALUES ('global', ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET pulses_per_liter = excluded.pulses_per_liter,
			timezone = excluded.timezone, updated_at = CURRENT_TIMESTAMP`,
		pulsesPerLiter, timezone)
	return err
}

// LOADCALIBRATION RETURNS THE PERSISTED CALIBRATION, OR (fallback, "UTC") IF NONE IS STORED
func (s *Store) LoadCalibration(fallback uint32) (uint32, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ppl uint32
	var tz string
	err := s.db.QueryRow(`SELECT pulses_per_liter, timezone FROM calibration WHERE id = 'global'`).Scan(&ppl, &tz)
	if err == sql.ErrNoRows {
		return fallback, "UTC", nil
	}
	if err != nil {
		return 0, "", err
	}
	return ppl, tz, nil
}

// RECORDTASKLIFECYCLE IMPLEMENTS executor.HistoryRecorder, APPENDING ONE HISTORY ROW
func (s *Store) RecordTaskLifecycle(evt models.TaskLifecycleEvent) {
	_ = s.writePool.Submit(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := s.db.Exec(`
			INSERT INTO history (id, channel_id, task_id, phase, requested_ml, delivered_ml, reason, timestamp_epoch)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), evt.ChannelID, evt.TaskID, string(evt.Phase), evt.RequestedML, evt.DeliveredML,
			evt.Reason, evt.TimestampEpoch)
		if err != nil {
			s.logger.Warn("storage: failed to record task lifecycle event", map[string]any{
				"channelId": evt.ChannelID, "taskId": evt.TaskID, "error": err.Error(),
			})
		}
		return err
	})
}

// HISTORYFOR RETURNS THE MOST RECENT limit HISTORY ROWS FOR A CHANNEL NEWER THAN sinceEpoch,
// NEWEST FIRST. sinceEpoch <= 0 MEANS NO LOWER BOUND, FOR A FULL BACKFILL ON FIRST POLL.
func (s *Store) HistoryFor(channelID int, sinceEpoch int64, limit int) ([]models.TaskLifecycleEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, task_id, phase, requested_ml, delivered_ml, reason, timestamp_epoch
		FROM history WHERE channel_id = ? AND timestamp_epoch > ?
		ORDER BY timestamp_epoch DESC LIMIT ?`, channelID, sinceEpoch, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TaskLifecycleEvent
	for rows.Next() {
		var evt models.TaskLifecycleEvent
		evt.ChannelID = channelID
		if err := rows.Scan(&evt.ID, &evt.TaskID, &evt.Phase, &evt.RequestedML, &evt.DeliveredML, &evt.Reason, &evt.TimestampEpoch); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

// VOLUMESTATS RESOLVES last_volume_ml / total_volume_ml FOR A CHANNEL FROM THE HISTORY TABLE
// (OPEN QUESTION 1 RESOLUTION — SEE DESIGN.MD: THESE FIGURES ARE DERIVED FROM RECORDED DELIVERIES
// RATHER THAN MAINTAINED AS SEPARATE RUNNING COUNTERS, SO THEY STAY CONSISTENT WITH HISTORY EVEN
// IF A COUNTER UPDATE IS EVER MISSED).
func (s *Store) VolumeStats(channelID int) (lastVolumeMl float64, totalVolumeMl float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT delivered_ml FROM history
		WHERE channel_id = ? AND phase IN ('COMPLETED') ORDER BY timestamp_epoch DESC LIMIT 1`, channelID)
	if scanErr := row.Scan(&lastVolumeMl); scanErr != nil && scanErr != sql.ErrNoRows {
		return 0, 0, scanErr
	}

	totalRow := s.db.QueryRow(`
		SELECT COALESCE(SUM(delivered_ml), 0) FROM history WHERE channel_id = ?`, channelID)
	if scanErr := totalRow.Scan(&totalVolumeMl); scanErr != nil {
		return lastVolumeMl, 0, scanErr
	}
	return lastVolumeMl, totalVolumeMl, nil
}

// RECORDRAINFALL APPENDS A RAINFALL SAMPLE, FOR THE ENVIRONMENT READER'S LOOKBACK WINDOW
func (s *Store) RecordRainfall(mm float64, timestampEpoch int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO rainfall_samples (id, mm, timestamp_epoch) VALUES (?, ?, ?)`,
		uuid.NewString(), mm, timestampEpoch)
	return err
}

// RAINFALLSINCE SUMS RAINFALL SAMPLES AT OR AFTER sinceEpoch
func (s *Store) RainfallSince(sinceEpoch int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total sql.NullFloat64
	err := s.db.QueryRow(`SELECT SUM(mm) FROM rainfall_samples WHERE timestamp_epoch >= ?`, sinceEpoch).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}
