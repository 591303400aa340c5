package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Settings keys the pipeline consumes.
const (
	SettingLastSyncTime           = "last_sync_time"
	SettingClassificationProjects = "classification_projects"
	SettingClassificationTags     = "classification_tags"
	SettingClassificationDomains  = "classification_domains"
)

// GetSetting fetches a single setting, returning def when absent.
func (s *Store) GetSetting(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("setting fetch failed, using default")
		return def
	}
	return value
}

// SetSetting saves or updates a setting.
func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO app_settings(key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// GetJSONListSetting fetches a JSON string-list setting, returning def when
// the value is absent or unparseable.
func (s *Store) GetJSONListSetting(key string, def []string) []string {
	raw := s.GetSetting(key, "")
	if raw == "" {
		return def
	}
	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return def
	}
	return parsed
}

// SetJSONListSetting stores a string list as JSON.
func (s *Store) SetJSONListSetting(key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode setting %q: %w", key, err)
	}
	return s.SetSetting(key, string(raw))
}
