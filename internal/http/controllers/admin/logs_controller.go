// Package admin contiene los controllers de administración del login.
package admin

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	httperrors "github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/helpers"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/identity"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/services/loginlog"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// LogsController maneja consulta y exportación del log de logins.
type LogsController struct {
	logs     loginlog.Service
	settings identity.SettingsLoader
	now      func() time.Time
}

func NewLogsController(logs loginlog.Service, settings identity.SettingsLoader) *LogsController {
	return &LogsController{logs: logs, settings: settings, now: time.Now}
}

func queryFrom(r *http.Request) loginlog.Query {
	q := r.URL.Query()
	return loginlog.Query{
		Page:      helpers.QueryInt(r, "page", 1),
		PerPage:   helpers.QueryInt(r, "perPage", loginlog.DefaultPerPage),
		Status:    strings.TrimSpace(q.Get("status")),
		StartDate: strings.TrimSpace(q.Get("startDate")),
		EndDate:   strings.TrimSpace(q.Get("endDate")),
		Search:    strings.TrimSpace(q.Get("search")),
	}
}

// List maneja GET /api/provider/login-logs
func (c *LogsController) List(w http.ResponseWriter, r *http.Request) {
	page, err := c.logs.List(r.Context(), queryFrom(r))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*loginlog.Page
	}{true, page})
}

// Export maneja GET /api/provider/logs-export
func (c *LogsController) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LogsController.Export"))

	vals, err := c.settings.Load(ctx)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if !vals.AllowLogExport() {
		httperrors.WriteError(w, r, httperrors.ErrFeatureDisabled.WithMessage("日志导出功能已禁用"))
		return
	}

	// Se arma completo antes de escribir: un error a mitad no deja un CSV truncado con status 200.
	var buf bytes.Buffer
	n, err := c.logs.Export(ctx, &buf, queryFrom(r))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	name := fmt.Sprintf("dingtalk_login_logs_%s.csv", c.now().Format("2006-01-02_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	log.Info("login logs exported", logger.Int("rows", n))
}
