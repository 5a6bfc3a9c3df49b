package settings

// Claves administrables. Los nombres coinciden con los que usa el panel del host.
const (
	KeyAppKey            = "app_key"
	KeyAppSecret         = "app_secret"
	KeyAgentID           = "agent_id"
	KeyCorpID            = "corp_id"
	KeyCallbackURL       = "callback_url"
	KeyForceBind         = "force_bind"
	KeyOnlyProviderLogin = "only_dingtalk_login"
	KeyAutoRegister      = "auto_register"
	KeyEnterpriseOnly    = "enterprise_only"
	KeyAllowedCorpIDs    = "allowed_corp_ids"
	KeySyncNickname      = "sync_nickname"
	KeySyncAvatar        = "sync_avatar"
	KeySyncMobile        = "sync_mobile"
	KeySyncEmail         = "sync_email"
	KeyUsernameRule      = "username_rule"
	KeyLogRetentionDays  = "log_retention_days"
	KeyAllowLogExport    = "allow_log_export"
	KeyEnableH5Login     = "enable_h5_login"
	KeyShowOnIndex       = "show_on_index"
	KeyShowLoginButton   = "show_login_button"
	KeyExemptUsers       = "exempt_users"
)

// Defaults incorporados. Una clave ausente aquí tiene default "".
var builtinDefaults = map[string]string{
	KeyCallbackURL:       "auto",
	KeyForceBind:         "0",
	KeyOnlyProviderLogin: "0",
	KeyAutoRegister:      "1",
	KeyEnterpriseOnly:    "0",
	KeySyncNickname:      "1",
	KeySyncAvatar:        "1",
	KeySyncMobile:        "0",
	KeySyncEmail:         "0",
	KeyUsernameRule:      "nickname",
	KeyLogRetentionDays:  "30",
	KeyAllowLogExport:    "1",
	KeyEnableH5Login:     "1",
	KeyShowOnIndex:       "0",
	KeyShowLoginButton:   "1",
}

// Keys lista todas las claves conocidas, en orden estable.
func Keys() []string {
	return []string{
		KeyAppKey, KeyAppSecret, KeyAgentID, KeyCorpID, KeyCallbackURL,
		KeyForceBind, KeyOnlyProviderLogin, KeyAutoRegister, KeyEnterpriseOnly,
		KeyAllowedCorpIDs, KeySyncNickname, KeySyncAvatar, KeySyncMobile,
		KeySyncEmail, KeyUsernameRule, KeyLogRetentionDays, KeyAllowLogExport,
		KeyEnableH5Login, KeyShowOnIndex, KeyShowLoginButton, KeyExemptUsers,
	}
}

// Known reporta si key es una clave administrable.
func Known(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Secret reporta si el valor no debe mostrarse en listados.
func Secret(key string) bool {
	return key == KeyAppSecret
}
