// Package settings defines the persisted user configuration: platform
// schemas, match keys, report layouts and the courier upload format, each
// stored as a JSON document under a fixed key.
package settings

import (
	"context"
	"embed"
	"errors"
	"fmt"
)

// Fixed store keys. Changing them orphans existing user settings.
const (
	KeyOrderHeaderVariables   = "ORDER-HEADER-VARIABLES"
	KeyDeliveryInfoKeys       = "DELIVERY-INFO-KEYS"
	KeyDeliveryFormatSettings = "DELIVERY-FORMAT-SETTINGS"
	KeyReportSchemas          = "DELIVERY-REPORT-SCHEMAS"
)

var (
	ErrUnknownKey = errors.New("settings: unknown settings key")
	ErrCorrupted  = errors.New("settings: stored value is corrupted")
)

// Store is a string key-value store
type Store interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

//go:embed defaults/*.json
var defaultsFS embed.FS

var defaultFiles = map[string]string{
	KeyOrderHeaderVariables:   "defaults/platforms.json",
	KeyDeliveryInfoKeys:       "defaults/match_keys.json",
	KeyDeliveryFormatSettings: "defaults/delivery_format.json",
	KeyReportSchemas:          "defaults/report_schemas.json",
}

// Keys lists every settings key
func Keys() []string {
	return []string{KeyOrderHeaderVariables, KeyDeliveryInfoKeys, KeyDeliveryFormatSettings, KeyReportSchemas}
}

// IsKey reports whether key is a known settings key
func IsKey(key string) bool {
	_, ok := defaultFiles[key]
	return ok
}

// Default returns the bundled default document of a key
func Default(key string) (string, error) {
	path, ok := defaultFiles[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	b, err := defaultsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("settings: read default %s: %w", key, err)
	}
	return string(b), nil
}
