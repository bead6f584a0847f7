// Package config loads the optional per-document configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// FileName is looked up in the invocation directory.
const FileName = ".mash.hcl"

// Config tunes a mash invocation. Everything is optional; CLI flags win
// over file values.
type Config struct {
	// KeepDirectory receives final outputs. Must be absolute when set.
	KeepDirectory string `hcl:"keep_directory,optional"`
	// ImportPaths are searched by imprt and include, in order.
	ImportPaths []string `hcl:"import_paths,optional"`
	// SpellWords names a file of words spell_check should accept.
	SpellWords string `hcl:"spell_words,optional"`
}

// Load reads dir/.mash.hcl. A missing file yields a zero config.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return &Config{}, nil
	}
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if cfg.KeepDirectory != "" && !filepath.IsAbs(cfg.KeepDirectory) {
		return nil, fmt.Errorf("%s: keep_directory %q must be an absolute path",
			path, cfg.KeepDirectory)
	}
	return &cfg, nil
}
