// Package config loads the node configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johker/phtm/internal/msg"
)

const (
	TransportMemory = "memory"
	TransportLibp2p = "libp2p"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Transport string `json:"transport" yaml:"transport"` // default libp2p

	// libp2p transport
	ListenAddrs     []string `json:"listen_addrs" yaml:"listen_addrs"`
	Bootstrap       []string `json:"bootstrap" yaml:"bootstrap"`
	Rendezvous      string   `json:"rendezvous" yaml:"rendezvous"`
	EnableMDNS      *bool    `json:"enable_mdns" yaml:"enable_mdns"` // default true
	IdentityKeyFile string   `json:"identity_key_file" yaml:"identity_key_file"`

	// Envelope
	PayloadSize int    `json:"payload_size" yaml:"payload_size"` // default 512
	FirstID     uint16 `json:"first_id" yaml:"first_id"`         // default 1

	// Topics this node consumes. With the memory transport these are
	// prefixes; gossipsub needs full topics such as "T002.002".
	Subscribe   []string `json:"subscribe" yaml:"subscribe"`
	StrictTopic bool     `json:"strict_topic" yaml:"strict_topic"`

	// Demo producer
	Producer        bool     `json:"producer" yaml:"producer"`
	ProducerKey     string   `json:"producer_key" yaml:"producer_key"` // default MessageKey.D_INPUT
	ProducerBits    []int    `json:"producer_bits" yaml:"producer_bits"`
	ProducerClear   []int    `json:"producer_clear" yaml:"producer_clear"`
	PublishInterval Duration `json:"publish_interval" yaml:"publish_interval"` // default 5s

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`   // default info
	LogFormat string `json:"log_format" yaml:"log_format"` // default text
}

// Duration accepts "5s" style strings in both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Load reads path, choosing the decoder by extension, then applies
// defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (use .json/.yaml/.yml)", ext)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportLibp2p
	}
	if len(c.ListenAddrs) == 0 {
		c.ListenAddrs = []string{"/ip4/0.0.0.0/tcp/0"}
	}
	if c.Rendezvous == "" {
		c.Rendezvous = "phtm"
	}
	if c.EnableMDNS == nil {
		v := true
		c.EnableMDNS = &v
	}
	if c.PayloadSize == 0 {
		c.PayloadSize = msg.DefaultPayloadSize
	}
	if c.FirstID == 0 {
		c.FirstID = 1
	}
	if c.Subscribe == nil {
		c.Subscribe = []string{
			msg.Topic(msg.TypeConfiguration, msg.CommandInput),
			msg.Topic(msg.TypeData, msg.CommandWrite),
		}
	}

	if c.ProducerKey == "" {
		c.ProducerKey = msg.KeyTable + ".D_INPUT"
	}
	if c.ProducerBits == nil {
		c.ProducerBits = []int{3, 5, 7, 80}
	}
	if c.ProducerClear == nil {
		c.ProducerClear = []int{5}
	}
	if c.PublishInterval == 0 {
		c.PublishInterval = Duration(5 * time.Second)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportMemory, TransportLibp2p:
	default:
		errs = append(errs, fmt.Errorf("transport %q (use memory/libp2p)", c.Transport))
	}
	if c.PayloadSize < 4 {
		errs = append(errs, fmt.Errorf("payload_size %d is below 4", c.PayloadSize))
	}
	if c.Transport == TransportLibp2p {
		for _, topic := range c.Subscribe {
			if _, _, err := msg.ParseTopic(topic); err != nil {
				errs = append(errs, fmt.Errorf("subscribe: gossipsub needs exact topics: %w", err))
			}
		}
	}
	if c.Producer {
		if _, err := msg.LookupKey(c.ProducerKey); err != nil {
			errs = append(errs, fmt.Errorf("producer_key: %w", err))
		}
		limit := c.PayloadSize * 8
		for _, idx := range append(append([]int(nil), c.ProducerBits...), c.ProducerClear...) {
			if idx < 0 || idx >= limit {
				errs = append(errs, fmt.Errorf("producer bit %d outside payload of %d bits", idx, limit))
			}
		}
		if c.PublishInterval <= 0 {
			errs = append(errs, fmt.Errorf("publish_interval must be positive"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// MDNS reports whether mDNS discovery is enabled.
func (c *Config) MDNS() bool {
	return c.EnableMDNS == nil || *c.EnableMDNS
}
