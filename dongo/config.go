package dongo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used for hosts declared without an explicit port.
const DefaultPort = 27017

// Config describes how a client reaches its store and which database
// collections default to. The core only validates and normalizes it;
// dialing is the driver's job.
type Config struct {
	// Database is the default database for collections that do not
	// declare their own.
	Database string `yaml:"database"`

	// URI, when set, wins over Host/Hosts.
	URI string `yaml:"uri,omitempty"`

	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// Hosts lists replica members ("host" or "host:port"). Requires
	// ReplicaSet.
	Hosts      []string `yaml:"hosts,omitempty"`
	ReplicaSet string   `yaml:"replica_set,omitempty"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dongo: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("dongo: parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the addressing parameters.
func (c *Config) Validate() error {
	if len(c.Hosts) > 0 && c.ReplicaSet == "" {
		return fmt.Errorf("%w: specify a replica set name for multiple hosts", ErrConnect)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConnect, c.Port)
	}
	for _, host := range c.Hosts {
		if hostPart, portPart, ok := strings.Cut(host, ":"); ok {
			if hostPart == "" {
				return fmt.Errorf("%w: empty host in %q", ErrConnect, host)
			}
			if _, err := strconv.Atoi(portPart); err != nil {
				return fmt.Errorf("%w: bad port in %q", ErrConnect, host)
			}
		} else if host == "" {
			return fmt.Errorf("%w: empty host", ErrConnect)
		}
	}
	return nil
}

// Addrs returns the normalized host:port list the driver should dial:
// the replica hosts when declared, else the single host, defaulting
// ports as needed. Empty when only a URI is configured.
func (c *Config) Addrs() []string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	if len(c.Hosts) > 0 {
		addrs := make([]string, 0, len(c.Hosts))
		for _, host := range c.Hosts {
			if strings.Contains(host, ":") {
				addrs = append(addrs, host)
			} else {
				addrs = append(addrs, fmt.Sprintf("%s:%d", host, port))
			}
		}
		return addrs
	}
	if c.Host != "" {
		return []string{fmt.Sprintf("%s:%d", c.Host, port)}
	}
	return nil
}
