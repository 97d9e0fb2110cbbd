// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package copconfig loads the coprocessor's process-wide tunables from a
// TOML file, the way pkg/config's Config loads the storage node's server
// parameters with BurntSushi/toml.
package copconfig

import (
	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/mo-pushdown/pkg/coplog"
)

// Config is the coprocessor's static configuration: the budget law's
// defaults, the group-by map's resource ceilings, and the logging setup.
type Config struct {
	// DefaultMaxFetchCount and DefaultMaxBytesRPC are the budgets a caller
	// (cmd/copbench) substitutes when its own budget setting is zero
	// (spec §4.6 treats zero as "caller did not set a cap"). Execute does
	// not read them: it treats a zero budget as no cap.
	DefaultMaxFetchCount int `toml:"default_max_fetch_count"`
	DefaultMaxBytesRPC   int `toml:"default_max_bytes_rpc"`

	// GroupMapRowCeiling bounds the number of distinct groups an
	// Aggregator may buffer before Execute fails with ResourceExhausted
	// (spec §5's "may enforce a resource ceiling").
	GroupMapRowCeiling int `toml:"group_map_row_ceiling"`

	// GroupMapByteCeiling bounds the total size, in bytes, of the group
	// keys an Aggregator may buffer before Execute fails with
	// ResourceExhausted -- the same ceiling as GroupMapRowCeiling, but
	// measured in bytes instead of distinct groups, for callers whose
	// group-by columns are wide (e.g. STRING keys).
	GroupMapByteCeiling int `toml:"group_map_byte_ceiling"`

	Log LogConfig `toml:"log"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxDays    int    `toml:"max-days"`
	MaxBackups int    `toml:"max-backups"`
}

// Default returns the configuration used when no TOML file is supplied:
// unbounded budgets (caller must set them explicitly per request) and a
// console logger at info level.
func Default() *Config {
	return &Config{
		DefaultMaxFetchCount: 0,
		DefaultMaxBytesRPC:   0,
		GroupMapRowCeiling:   0,
		GroupMapByteCeiling:  0,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses the TOML file at path, filling in Default()'s
// values for any key the file does not set.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger installs c.Log as the process-wide logger.
func (c *Config) SetupLogger() {
	coplog.Setup(&coplog.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Filename:   c.Log.Filename,
		MaxSize:    c.Log.MaxSize,
		MaxDays:    c.Log.MaxDays,
		MaxBackups: c.Log.MaxBackups,
	})
}
