package session

import (
	"context"
	"fmt"

	"github.com/virtualchime/chime-core/internal/settings"
)

// SaveSettings writes the host, username and password to the settings
// store. Values are stored as plain text; an unset value is stored as "".
func (m *Manager) SaveSettings(ctx context.Context) error {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	values := []struct {
		key   string
		value string
	}{
		{settings.KeyHost, cfg.Host},
		{settings.KeyUsername, cfg.Username},
		{settings.KeyPassword, cfg.Password},
	}

	for _, v := range values {
		if err := m.store.Set(ctx, v.key, v.value); err != nil {
			return fmt.Errorf("saving %s: %w", v.key, err)
		}
	}
	return nil
}

// LoadSettings reads the host, username and password from the settings
// store. Missing or empty values leave the current value untouched. It
// does not create a broker client; call Configure for that.
func (m *Manager) LoadSettings(ctx context.Context) error {
	loaded := make(map[string]string, 3)
	for _, key := range []string{settings.KeyHost, settings.KeyUsername, settings.KeyPassword} {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("loading %s: %w", key, err)
		}
		if ok && v != "" {
			loaded[key] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := loaded[settings.KeyHost]; ok {
		m.cfg.Host = v
	}
	if v, ok := loaded[settings.KeyUsername]; ok {
		m.cfg.Username = v
	}
	if v, ok := loaded[settings.KeyPassword]; ok {
		m.cfg.Password = v
	}
	return nil
}
