/*
File Name:  Config.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	_ "embed" // Required for embedding default Config file
	"io/ioutil"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current node library version.
const Version = "0.1"

// Config is the process-level configuration, loaded once at start.
type Config struct {
	LogFile string `yaml:"LogFile"` // Log file. Empty disables file logging.

	Listen string `yaml:"Listen"` // IP:Port to bind the UDP socket on.

	CacheCapacity int    `yaml:"CacheCapacity"` // Value cache capacity. 0 uses the spec default (100,000).
	CachePath     string `yaml:"CachePath"`     // Optional path for the durable cache backend. Empty keeps the cache in-memory only.

	StatusListen string `yaml:"StatusListen"` // Optional IP:Port for the read-only status API. Empty disables it.

	// SeedList is the initial set of peers contacted on bootstrap.
	SeedList []PeerSeed `yaml:"SeedList"`
}

// PeerSeed is a single entry in the bootstrap seed list.
type PeerSeed struct {
	NodeId  string `yaml:"NodeId"`  // Hex-encoded NodeId.
	Address string `yaml:"Address"` // "IP:Port"
}

var configFile string

//go:embed "Config Default.yaml"
var defaultConfig []byte

// LoadConfig reads the YAML configuration file into cfg.
// If an error is returned, the application shall exit.
func LoadConfig(filename string, cfg *Config) (status int, err error) {
	var configData []byte
	configFile = filename

	// check if the file is non existent or empty
	stats, err := os.Stat(filename)
	if err != nil && os.IsNotExist(err) || err == nil && stats.Size() == 0 {
		configData = defaultConfig
	} else if err != nil {
		return StatusUnknownError, err
	} else if configData, err = ioutil.ReadFile(filename); err != nil {
		return StatusConfigRead, err
	}

	if err = yaml.Unmarshal(configData, cfg); err != nil {
		return StatusConfigParse, err
	}

	return StatusSuccess, nil
}

// SaveConfig writes cfg back to the file LoadConfig was given.
func SaveConfig(cfg *Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		log.Printf("SaveConfig Error marshalling config: %v\n", err.Error())
		return
	}

	if err = ioutil.WriteFile(configFile, data, 0644); err != nil {
		log.Printf("SaveConfig Error writing config '%s': %v\n", configFile, err.Error())
	}
}
