package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// CONFIG STRUCTURE
type Config struct {
	Port        string `json:"port"`
	DataPath    string `json:"dataPath"`
	LogPath     string `json:"logPath"`
	DBFileName  string `json:"dbFileName"`
	MaxQueueLen int    `json:"maxQueueLen"`

	// HYDRAULIC / FLOW TIMING
	DebounceMS                   int `json:"debounceMs"`
	FlowCheckThresholdMS          int `json:"flowCheckThresholdMs"`
	MaxFlowErrorAttempts          int `json:"maxFlowErrorAttempts"`
	UnexpectedFlowThreshold       int `json:"unexpectedFlowThreshold"`
	HydraulicNoFlowRetryCooldownS int `json:"hydraulicNoFlowRetryCooldownSec"`
	HydraulicSoftLockRetrySec     int `json:"hydraulicSoftLockRetrySec"`
	PauseMaxMinutes               int `json:"pauseMaxMinutes"`

	// AUTO SCHEDULER
	AutoCalcIntervalHours int  `json:"autoCalcIntervalHours"`
	AutoCalcEnabled       bool `json:"autoCalcEnabled"`

	// DEFAULT FLOW CALIBRATION, PULSES PER LITER
	DefaultPulsesPerLiter uint32 `json:"defaultPulsesPerLiter"`
}

// LOAD CONFIG FROM FILE
func LoadConfig(path string) (*Config, error) {
	// READ CONFIG FILE
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// VALIDATE AS RAW JSON
	var raw json.RawMessage
	if err := json.Unmarshal(file, &raw); err != nil {
		return nil, err
	}

	// PARSE CONFIG JSON
	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	// ENSURE ALL PATHS ARE VALID
	cfg.DataPath = sanitizePath(cfg.DataPath)
	cfg.LogPath = sanitizePath(cfg.LogPath)

	return &cfg, nil
}

// SAVE CONFIG TO FILE
func SaveConfig(cfg *Config, path string) error {
	// MARSHAL CONFIG TO JSON
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// WRITE CONFIG FILE
	return os.WriteFile(path, data, 0644)
}

// GET DEFAULT CONFIG
func GetDefaultConfig() *Config {
	return &Config{
		Port:        "8080",
		DataPath:    "./data",
		LogPath:     "./logs",
		DBFileName:  "irrigation.db",
		MaxQueueLen: 16,

		DebounceMS:                    2,
		FlowCheckThresholdMS:          1000,
		MaxFlowErrorAttempts:          3,
		UnexpectedFlowThreshold:       5,
		HydraulicNoFlowRetryCooldownS: 300,
		HydraulicSoftLockRetrySec:     600,
		PauseMaxMinutes:               30,

		AutoCalcIntervalHours: 1,
		AutoCalcEnabled:       true,

		DefaultPulsesPerLiter: 450,
	}
}

// FLOWCHECKINTERVAL RETURNS THE FLOW MONITOR POLL PERIOD AS A DURATION
func (c *Config) FlowCheckInterval() time.Duration {
	return time.Duration(c.FlowCheckThresholdMS) * time.Millisecond
}

// DEBOUNCEINTERVAL RETURNS THE PULSE DEBOUNCE WINDOW AS A DURATION
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// PAUSEMAX RETURNS THE MAXIMUM ALLOWED PAUSE DURATION
func (c *Config) PauseMax() time.Duration {
	return time.Duration(c.PauseMaxMinutes) * time.Minute
}

// SANITIZE PATH TO ENSURE IT'S VALID
func sanitizePath(path string) string {
	// MAKE SURE PATH IS NOT EMPTY
	if path == "" {
		return "."
	}
	// CLEAN PATH
	return filepath.Clean(path)
}

// APPCONFIG IS THE PROCESS-WIDE DEFAULT, SET ONCE AT STARTUP
var AppConfig = GetDefaultConfig()
