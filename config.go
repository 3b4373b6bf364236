package aes67

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/imdario/mergo"
)

// NodeConfig carries the endpoint identity advertised over IS-04.
type NodeConfig struct {
	Id          string            `json:"id,omitempty"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// NetworkConfig carries the control-plane and timing plumbing.
type NetworkConfig struct {
	Interface   string `json:"interface,omitempty"`
	PtpDomain   uint8  `json:"ptp_domain,omitempty"`
	RegistryURL string `json:"registry_url,omitempty"`
	EnableMdns  *bool  `json:"enable_mdns,omitempty"`
	NodePort    uint16 `json:"node_port,omitempty"`
}

// AudioConfig carries the playout buffering profile shared by receivers that
// do not override it.
type AudioConfig struct {
	BufferMs       uint32 `json:"buffer_ms,omitempty"`
	JitterBufferMs uint32 `json:"jitter_buffer_ms,omitempty"`
	MaxDelayMs     uint32 `json:"max_delay_ms,omitempty"`
	MaxPackets     int    `json:"max_packets,omitempty"`
}

// JitterBufferConfig derives the per-receiver queue bounds.
func (c AudioConfig) JitterBufferConfig(sampleRate uint32) JitterBufferConfig {
	return JitterBufferConfig{
		TargetDelayMs: c.JitterBufferMs,
		MinDelayMs:    c.BufferMs,
		MaxDelayMs:    c.MaxDelayMs,
		MaxPackets:    c.MaxPackets,
		SampleRate:    sampleRate,
	}
}

// LoggingConfig selects the log level applied at startup.
type LoggingConfig struct {
	Level string `json:"level,omitempty"`
}

// Config is the complete endpoint configuration.
type Config struct {
	Node      NodeConfig       `json:"node,omitempty"`
	Senders   []SenderConfig   `json:"senders,omitempty"`
	Receivers []ReceiverConfig `json:"receivers,omitempty"`
	Network   NetworkConfig    `json:"network,omitempty"`
	Audio     AudioConfig      `json:"audio,omitempty"`
	Logging   LoggingConfig    `json:"logging,omitempty"`
}

// DefaultConfig returns the baseline endpoint profile.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Label:       "aes67-endpoint",
			Description: "AES67 audio-over-IP endpoint",
		},
		Network: NetworkConfig{
			Interface: "eth0",
			NodePort:  8080,
		},
		Audio: AudioConfig{
			BufferMs:       5,
			JitterBufferMs: 10,
			MaxDelayMs:     50,
			MaxPackets:     1000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads a JSON configuration file and applies defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes JSON configuration and applies defaults.
func ParseConfig(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := config.applyDefaults(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// applyDefaults fills unset fields from the baseline profile and expands
// per-stream defaults.
func (c *Config) applyDefaults() error {
	defaults := DefaultConfig()
	if err := mergo.Merge(c, defaults); err != nil {
		return err
	}

	for i := range c.Senders {
		sender := DefaultSenderConfig
		if err := override(&sender, &c.Senders[i]); err != nil {
			return err
		}
		if sender.Id == "" {
			sender.Id = uuid.NewString()
		}
		c.Senders[i] = sender
	}
	for i := range c.Receivers {
		if c.Receivers[i].Id == "" {
			c.Receivers[i].Id = uuid.NewString()
		}
		if c.Receivers[i].JitterBuffer.MaxPackets == 0 {
			c.Receivers[i].JitterBuffer = c.Audio.JitterBufferConfig(48000)
		}
	}
	return nil
}

// Validate checks every stream block; a configuration error here refuses
// startup.
func (c Config) Validate() error {
	if c.Network.NodePort == 0 {
		return fmt.Errorf("network: %w", ErrInvalidPort)
	}
	for _, sender := range c.Senders {
		if err := sender.Validate(); err != nil {
			return fmt.Errorf("sender %q: %w", sender.Id, err)
		}
	}
	for _, receiver := range c.Receivers {
		if err := receiver.Validate(); err != nil {
			return fmt.Errorf("receiver %q: %w", receiver.Id, err)
		}
	}
	return nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
