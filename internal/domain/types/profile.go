package types

// ProviderProfile es el perfil normalizado que devuelve el proveedor.
// Las variantes de nombres de campo de cada endpoint se resuelven en el
// cliente del proveedor; el resto del código sólo ve esta forma.
type ProviderProfile struct {
	ProviderUserID string // unionId, estable entre apps de la misma empresa
	ProviderOpenID string
	OrganizationID string // corpId
	DisplayName    string
	AvatarURL      string
	Mobile         string
	Email          string
}

// HasIdentity reporta si el perfil trae un identificador estable.
func (p ProviderProfile) HasIdentity() bool {
	return p.ProviderUserID != ""
}
