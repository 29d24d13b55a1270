package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	configDir    string = ".gekkodbg"
	xdgConfigDir string = "gekkodbg"
	configFile   string = "config.yml"
)

// DefaultDisassembleCount is the number of instructions printed by
// disassemble when neither the command nor the configuration set it.
const DefaultDisassembleCount = 16

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// SymbolMap is the symbol map loaded at startup when --symbols is not
	// used.
	SymbolMap string `yaml:"symbol-map,omitempty"`

	// WatchesFile is the file read and written by loadwatches and
	// savewatches when they are called without arguments.
	WatchesFile string `yaml:"watches-file,omitempty"`

	// DisassembleCount is the number of instructions printed by
	// disassemble.
	DisassembleCount *int `yaml:"disassemble-count,omitempty"`

	// Address color in listings (3/4 bit color codes as defined
	// here: https://en.wikipedia.org/wiki/ANSI_escape_code#Colors)
	MemoryColor int `yaml:"memory-color"`

	// HistorySize is the number of commands kept in the history file.
	HistorySize int `yaml:"history-size"`
}

// GetDisassembleCount returns the configured instruction count for
// disassemble.
func (c *Config) GetDisassembleCount() int {
	if c == nil || c.DisassembleCount == nil || *c.DisassembleCount <= 0 {
		return DefaultDisassembleCount
	}
	return *c.DisassembleCount
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}

	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the gekkodbg debugger.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Symbol map loaded when --symbols is not passed.
# symbol-map: /path/to/game.map

# File used by savewatches and loadwatches when no file is given.
# watches-file: /path/to/watches.txt

# Number of instructions printed by disassemble.
# disassemble-count: 16

# ANSI foreground color of addresses in listings (if unset, default is 34,
# dark blue) See https://en.wikipedia.org/wiki/ANSI_escape_code#3/4_bit
# memory-color: 34

# Number of commands kept in the history file.
# history-size: 1000
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
// $XDG_CONFIG_HOME/gekkodbg is used if XDG_CONFIG_HOME is set, otherwise
// ~/.gekkodbg.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, xdgConfigDir, file), nil
	}
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
