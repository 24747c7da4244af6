package config

import (
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// SecretProvider hands out the admin secret. It is safe for concurrent use and can be
// updated while the server runs.
type SecretProvider struct {
	secret atomic.Value // string
}

// NewSecretProvider creates a provider holding secret
func NewSecretProvider(secret string) *SecretProvider {
	p := &SecretProvider{}
	p.Set(secret)
	return p
}

// AdminSecret returns the current secret. ok is false when none is configured.
func (p *SecretProvider) AdminSecret() (secret string, ok bool) {
	s, _ := p.secret.Load().(string)
	return s, s != ""
}

// Set replaces the secret
func (p *SecretProvider) Set(secret string) {
	p.secret.Store(secret)
}

// Watch follows the config file Load read and refreshes the admin secret in secrets
// whenever the file changes. Only the secret is hot-reloaded; everything else needs a
// restart. Returns false when configuration came from defaults and environment only.
func Watch(cfg *Config, secrets *SecretProvider) bool {
	v := cfg.source
	if v == nil || v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Error("config reload failed, keeping previous admin secret", "file", e.Name, "error", err)
			return
		}
		_, had := secrets.AdminSecret()
		secrets.Set(next.Auth.AdminSecret)
		slog.Info("admin secret reloaded", "file", e.Name, "was_set", had, "is_set", next.Auth.AdminSecret != "")
	})
	v.WatchConfig()
	return true
}
