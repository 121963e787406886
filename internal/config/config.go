package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Source kinds.
const (
	SourceWebSocket = "websocket"
	SourceSerial    = "serial"
	SourceMock      = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// Source
	Source string // "websocket", "serial" or "mock"

	// Device websocket
	DeviceAddress     string
	WSPath            string
	WSURL             string // overrides DeviceAddress + WSPath when set
	ReconnectInterval int    // milliseconds, 0 disables reconnect

	// Subscription
	SubscribeTopic  string
	SubscribeRateHz float64

	// Serial
	SerialPort     string
	SerialBaudRate int

	// MQTT (optional for the subscriber: empty broker disables republish)
	MQTTBroker            string
	MQTTClientIDSubscribe string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string

	// Topics
	TopicIMUPrefix string

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal() and Get().
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value set.
func Default() *Config {
	return &Config{
		Source:                SourceWebSocket,
		WSPath:                "/wsjson",
		ReconnectInterval:     5000,
		SubscribeTopic:        "IMU",
		SubscribeRateHz:       0.1,
		SerialBaudRate:        115200,
		MQTTClientIDSubscribe: "imu-subscriber",
		MQTTClientIDConsole:   "imu-console",
		MQTTClientIDWeb:       "imu-web",
		TopicIMUPrefix:        "imu",
		WebServerPort:         8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Source
	case "SOURCE":
		v := strings.ToLower(value)
		if v != SourceWebSocket && v != SourceSerial && v != SourceMock {
			return fmt.Errorf("SOURCE must be %q, %q or %q, got %q", SourceWebSocket, SourceSerial, SourceMock, value)
		}
		c.Source = v

	// Device websocket
	case "DEVICE_ADDRESS":
		c.DeviceAddress = value
	case "WS_PATH":
		if !strings.HasPrefix(value, "/") {
			value = "/" + value
		}
		c.WSPath = value
	case "WS_URL":
		c.WSURL = value
	case "RECONNECT_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RECONNECT_INTERVAL %q: %w", value, err)
		}
		if interval < 0 {
			return fmt.Errorf("RECONNECT_INTERVAL must be >= 0, got %d", interval)
		}
		c.ReconnectInterval = interval

	// Subscription
	case "SUBSCRIBE_TOPIC":
		c.SubscribeTopic = value
	case "SUBSCRIBE_RATE_HZ":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SUBSCRIBE_RATE_HZ %q: %w", value, err)
		}
		c.SubscribeRateHz = rate

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SUBSCRIBER":
		c.MQTTClientIDSubscribe = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_IMU_PREFIX":
		c.TopicIMUPrefix = strings.TrimSuffix(value, "/")

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	switch c.Source {
	case SourceWebSocket:
		if c.DeviceAddress == "" && c.WSURL == "" {
			return fmt.Errorf("DEVICE_ADDRESS or WS_URL is required for SOURCE=%s", SourceWebSocket)
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SOURCE=%s", SourceSerial)
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE must be > 0, got %d", c.SerialBaudRate)
		}
	}
	if c.SubscribeTopic == "" {
		return fmt.Errorf("SUBSCRIBE_TOPIC is required")
	}
	if c.SubscribeRateHz <= 0 {
		return fmt.Errorf("SUBSCRIBE_RATE_HZ must be > 0, got %g", c.SubscribeRateHz)
	}
	if c.TopicIMUPrefix == "" {
		return fmt.Errorf("TOPIC_IMU_PREFIX is required")
	}
	return nil
}

// WebSocketURL returns the device URL, e.g. ws://192.168.1.23/wsjson.
func (c *Config) WebSocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return "ws://" + c.DeviceAddress + c.WSPath
}

// Reconnect returns ReconnectInterval as a duration.
func (c *Config) Reconnect() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
