package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is the minimum level emitted: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// NetworkConfig holds the multicast addresses the engine listens on and sends to.
type NetworkConfig struct {
	// V4Addr is the IPv4 mDNS multicast group and port.
	V4Addr string `koanf:"v4_addr" validate:"required,ip_port"`

	// V6Addr is the IPv6 mDNS multicast group and port.
	V6Addr string `koanf:"v6_addr" validate:"required,ip_port"`
}

// CacheConfig bounds the size of an LRU-backed table.
type CacheConfig struct {
	Size int `koanf:"size" validate:"required,gte=1"`
}

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log LoggingConfig `koanf:"log"`

	// Host is the local host name the engine advertises, without the
	// ".local." suffix (the engine appends it).
	Host string `koanf:"host" validate:"required"`

	// Interfaces lists the network interface names to enable. An empty
	// list means "let the transceiver enumerate all usable interfaces".
	Interfaces []string `koanf:"interfaces"`

	// Verbose toggles structured logging of every inbound/outbound message.
	Verbose bool `koanf:"verbose"`

	Network NetworkConfig `koanf:"network"`

	// Renewer is the size bound for the resource renewer's tracked-resource
	// table. It is loaded and validated here but not passed to the engine,
	// which sizes its renewer table at a fixed 4096 entries.
	Renewer CacheConfig `koanf:"renewer"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the mDNS engine.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{
		Level: "info",
	},
	Host:       "",
	Interfaces: []string{},
	Verbose:    false,
	Network: NetworkConfig{
		V4Addr: "224.0.0.251:5353",
		V6Addr: "[ff02::fb]:5353",
	},
	Renewer: CacheConfig{
		Size: 4096,
	},
}

// validIPPort validates whether the provided field value is a valid IP
// address and port combination. It expects the value to be in the format
// "IP:Port". The function returns true if the IP address is valid and both
// the IP and port are non-empty; otherwise, it returns false.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables with the prefix "MDNS_".
// It transforms the keys to lowercase, removes the prefix, and turns the
// first remaining underscore into a key-path dot (MDNS_NETWORK_V4_ADDR
// becomes network.v4_addr), and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "MDNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "MDNS_"))
			key = strings.Replace(key, "_", ".", 1)
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads default configuration values into the provided Koanf
// instance using the structs provider and the DEFAULT_APP_CONFIG struct.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "ip_port" validation tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.Host == "" {
		hostname, err := defaultHostname()
		if err != nil {
			return nil, fmt.Errorf("no host configured and hostname lookup failed: %w", err)
		}
		cfg.Host = hostname
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultHostname returns the machine's host name, mockable in tests.
var defaultHostname = func() (string, error) {
	return os.Hostname()
}
