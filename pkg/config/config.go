// ComicSync Core
// Copyright (c) 2025 The ComicSync Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ComicSync Core.
//
// ComicSync Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ComicSync Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ComicSync Core.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the explicit configuration for the service: one
// struct constructed at startup and passed into the components that need
// it. Core logic performs no ambient environment lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "COMICSYNC_CFG"
	CfgFile       = "config.toml"
	LogFile       = "core.log"
	AppName       = "comicsync"
)

// ErrNoPath is returned when an Instance has no backing file path.
var ErrNoPath = errors.New("no config path set")

// Values is the on-disk TOML shape of the configuration.
type Values struct {
	Serial       Serial  `toml:"serial"`
	Preview      Preview `toml:"preview"`
	CfsDir       string  `toml:"cfs_dir,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

// Serial configures the device connection.
type Serial struct {
	Port           string `toml:"port,omitempty"`
	BaudRate       int    `toml:"baud_rate"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Preview configures the composed-curve visualization.
type Preview struct {
	SegmentMs int     `toml:"segment_ms"`
	StartPos  float64 `toml:"start_pos"`
}

// BaseDefaults are the values written to a fresh config file.
var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Serial: Serial{
		BaudRate:       115200,
		TimeoutSeconds: 5,
	},
	Preview: Preview{
		SegmentMs: 3000,
		StartPos:  50,
	},
}

// Instance is a thread-safe view over a loaded configuration file.
type Instance struct {
	cfgPath string
	vals    Values
	mu      sync.RWMutex
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NewConfig loads the configuration from configDir, creating a default file
// on first run. The COMICSYNC_CFG environment variable overrides the path.
//
//nolint:gocritic // defaults struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath: cfgPath,
		vals:    defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Str("path", cfgPath).Msg("saving new default config to disk")
		if saveErr := cfg.Save(); saveErr != nil {
			return nil, fmt.Errorf("failed to save default config: %w", saveErr)
		}
		return &cfg, nil
	}

	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Load re-reads the configuration file from disk.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return ErrNoPath
	}

	data, err := os.ReadFile(c.cfgPath) //nolint:gosec // path set at construction
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if newVals.ConfigSchema == 0 {
		newVals.ConfigSchema = SchemaVersion
	}

	c.vals = newVals
	return nil
}

// Save writes the configuration to disk, creating the directory if needed.
// The file is marshalled completely before being persisted.
func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return ErrNoPath
	}

	if err := os.MkdirAll(filepath.Dir(c.cfgPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := c.cfgPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, c.cfgPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Serial.BaudRate == 0 {
		return BaseDefaults.Serial.BaudRate
	}
	return c.vals.Serial.BaudRate
}

func (c *Instance) SerialTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	secs := c.vals.Serial.TimeoutSeconds
	if secs == 0 {
		secs = BaseDefaults.Serial.TimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

func (c *Instance) CfsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.CfsDir
}

func (c *Instance) SetCfsDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.CfsDir = dir
}

func (c *Instance) PreviewSegmentMs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Preview.SegmentMs == 0 {
		return BaseDefaults.Preview.SegmentMs
	}
	return c.vals.Preview.SegmentMs
}

func (c *Instance) PreviewStartPos() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Preview.StartPos
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}
