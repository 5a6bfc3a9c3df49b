// Package logger expone un *zap.Logger singleton con scoping por contexto.
//
// Init() se llama una vez desde el comando serve (o cualquier comando del CLI).
// Los middlewares HTTP inyectan un logger con request_id/method/path en el
// contexto y los services lo recuperan con From(ctx):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("identity.Bind"))
//	log.Info("identity linked", logger.UserID(u.ID), logger.ProviderUserID(p.ProviderUserID))
//
// Sin contexto se usa L(). En tests, UseNop() silencia la salida.
package logger
