package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLoaders(t *testing.T, env, def func(*koanf.Koanf) error) {
	t.Helper()
	origEnv, origDefault := envLoader, defaultLoader
	if env != nil {
		envLoader = env
	}
	if def != nil {
		defaultLoader = def
	}
	t.Cleanup(func() {
		envLoader = origEnv
		defaultLoader = origDefault
	})
}

func TestLoad_Defaults(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error { return nil }, nil)

	origHostname := defaultHostname
	defaultHostname = func() (string, error) { return "nucbox", nil }
	t.Cleanup(func() { defaultHostname = origHostname })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "224.0.0.251:5353", cfg.Network.V4Addr)
	assert.Equal(t, "[ff02::fb]:5353", cfg.Network.V6Addr)
	assert.Equal(t, "nucbox", cfg.Host)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 4096, cfg.Renewer.Size)
}

func TestLoad_EnvOverrides(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error {
		return k.Load(rawProvider(map[string]any{
			"env":             "dev",
			"log.level":       "debug",
			"host":            "workstation",
			"interfaces":      []string{"en0", "en1"},
			"verbose":         "true",
			"network.v4_addr": "127.0.0.1:15353",
			"network.v6_addr": "[::1]:15353",
			"renewer.size":    "256",
		}), nil)
	}, nil)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "workstation", cfg.Host)
	assert.Equal(t, []string{"en0", "en1"}, cfg.Interfaces)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "127.0.0.1:15353", cfg.Network.V4Addr)
	assert.Equal(t, "[::1]:15353", cfg.Network.V6Addr)
	assert.Equal(t, 256, cfg.Renewer.Size)
}

func TestLoad_InvalidEnv(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error {
		return k.Load(rawProvider(map[string]any{"env": "staging"}), nil)
	}, nil)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_InvalidNetworkAddr(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error {
		return k.Load(rawProvider(map[string]any{"network.v4_addr": "not-an-addr"}), nil)
	}, nil)

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_EnvLoaderError(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error {
		return errors.New("boom")
	}, nil)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading env")
}

func TestLoad_DefaultLoaderError(t *testing.T) {
	withLoaders(t, nil, func(k *koanf.Koanf) error {
		return errors.New("boom")
	})

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading default config")
}

func TestLoad_HostnameLookupFailure(t *testing.T) {
	withLoaders(t, func(k *koanf.Koanf) error {
		return k.Load(rawProvider(map[string]any{"host": ""}), nil)
	}, nil)

	origHostname := defaultHostname
	defaultHostname = func() (string, error) { return "", errors.New("no hostname") }
	t.Cleanup(func() { defaultHostname = origHostname })

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hostname lookup failed")
}

func TestValidIPPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid v4", "224.0.0.251:5353", true},
		{"valid v6", "[ff02::fb]:5353", true},
		{"missing port", "224.0.0.251", false},
		{"bad ip", "not-an-ip:5353", false},
		{"port zero", "224.0.0.251:0", false},
		{"port too big", "224.0.0.251:99999", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			require.NoError(t, registerValidation(v))
			err := v.Var(tt.value, "ip_port")
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// rawProvider builds a koanf confmap provider from a flat dotted-key map,
// used so tests can stage arbitrary overrides without touching real
// environment variables.
func rawProvider(values map[string]any) koanf.Provider {
	return confmapProvider{values: values}
}

type confmapProvider struct {
	values map[string]any
}

func (c confmapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confmapProvider does not support ReadBytes")
}

func (c confmapProvider) Read() (map[string]any, error) {
	out := make(map[string]any)
	for key, v := range c.values {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = v
	}
	return out, nil
}
