package dingtalk

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/types"
)

// Cada endpoint nombra los campos distinto (camelCase en api.dingtalk.com,
// minúsculas en oapi). La normalización vive sólo aquí.
var profileKeys = struct {
	unionID, openID, orgID, name, avatar, mobile, email []string
}{
	unionID: []string{"unionId", "unionid", "union_id"},
	openID:  []string{"openId", "openid", "open_id"},
	orgID:   []string{"corpId", "corpid", "corp_id"},
	name:    []string{"nick", "name", "nickname"},
	avatar:  []string{"avatarUrl", "avatar", "avatar_url"},
	mobile:  []string{"mobile"},
	email:   []string{"email", "org_email"},
}

func pick(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// normalizeProfile mapea un payload crudo al perfil del dominio.
func normalizeProfile(raw map[string]any) types.ProviderProfile {
	return types.ProviderProfile{
		ProviderUserID: pick(raw, profileKeys.unionID...),
		ProviderOpenID: pick(raw, profileKeys.openID...),
		OrganizationID: pick(raw, profileKeys.orgID...),
		DisplayName:    pick(raw, profileKeys.name...),
		AvatarURL:      pick(raw, profileKeys.avatar...),
		Mobile:         pick(raw, profileKeys.mobile...),
		Email:          pick(raw, profileKeys.email...),
	}
}
