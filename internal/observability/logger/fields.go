package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func HTTPMethod(v string) zap.Field { return zap.String("http_method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// DurationMs registra la duración en milisegundos.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// =================================================================================
// IDENTIDAD / LOGIN
// =================================================================================

// UserID es el id del usuario local.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// ProviderUserID es el unionId estable del proveedor.
func ProviderUserID(v string) zap.Field { return zap.String("provider_user_id", v) }

// OrganizationID es el corpId de la empresa del usuario.
func OrganizationID(v string) zap.Field { return zap.String("organization_id", v) }

// LoginMethod: scan | h5 | redirect.
func LoginMethod(v string) zap.Field { return zap.String("login_method", v) }

// Outcome: success | failed.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// Reason es la clasificación estable de un fallo (ver autherr.Classify).
func Reason(v string) zap.Field { return zap.String("reason", v) }

// LinkID es el id del vínculo de identidad.
func LinkID(v string) zap.Field { return zap.String("link_id", v) }

// Endpoint identifica la llamada al proveedor.
func Endpoint(v string) zap.Field { return zap.String("endpoint", v) }

// =================================================================================
// SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Layer(v string) zap.Field { return zap.String("layer", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int64) zap.Field { return zap.Int64("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
