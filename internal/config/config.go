// Package config loads the YAML-backed settings for the two external
// commands (pre-process, run-query). It is an ambient concern, outside
// the four core subsystems: the core never reads a config file itself,
// only the values a caller already resolved.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Files names the on-disk files bound by convention in spec §6.
type Files struct {
	Movies           string `yaml:"movies"`
	WorkedOn         string `yaml:"worked_on"`
	People           string `yaml:"people"`
	TitleIndex       string `yaml:"title_index"`
	FilteredWorkedOn string `yaml:"filtered_worked_on"`
}

// DefaultFiles matches the "known file names" table of spec §6.
func DefaultFiles() Files {
	return Files{
		Movies:           "imdb_movies.bin",
		WorkedOn:         "imdb_workedon.bin",
		People:           "imdb_people.bin",
		TitleIndex:       "imdb_title_index.bin",
		FilteredWorkedOn: "imdb_temp_filtered_workedon.bin",
	}
}

// QueryConfig configures the run-query command.
type QueryConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	TitleLo    string `yaml:"title_lo"`
	TitleHi    string `yaml:"title_hi"`
	Files      Files  `yaml:"files"`
}

// PreprocessConfig configures the pre-process command.
type PreprocessConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	MoviesTSV  string `yaml:"movies_tsv"`
	PrincipalsTSV string `yaml:"principals_tsv"`
	NamesTSV   string `yaml:"names_tsv"`
	Files      Files  `yaml:"files"`
}

// LoadQueryConfig loads a YAML file at path, falling back to defaults
// for any field it doesn't set. An absent file is not an error: the
// caller gets the defaults.
func LoadQueryConfig(path string) (QueryConfig, error) {
	cfg := QueryConfig{BufferSize: 64, Files: DefaultFiles()}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}

// LoadPreprocessConfig loads a YAML file at path the same way.
func LoadPreprocessConfig(path string) (PreprocessConfig, error) {
	cfg := PreprocessConfig{BufferSize: 64, Files: DefaultFiles()}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}
