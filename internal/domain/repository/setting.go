package repository

import "context"

// SettingRepository es un key/value plano de ajustes administrables.
type SettingRepository interface {
	// GetSetting retorna ok=false si la clave no fue seteada.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}
