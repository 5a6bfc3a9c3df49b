package auth

import (
	"html/template"
	"net/http"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// callbackPage es la página que ve el popup al volver del proveedor: avisa
// al opener y se cierra; sin opener navega a Redirect.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Success}}成功{{else}}失败{{end}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;background:#f5f5f5}
.box{background:#fff;padding:40px;border-radius:8px;box-shadow:0 2px 10px rgba(0,0,0,.1);text-align:center;max-width:400px}
.icon{font-size:48px;margin-bottom:16px}
.success .icon{color:#52c41a}
.error .icon{color:#ff4d4f}
.msg{font-size:16px;color:#333}
</style>
</head>
<body>
<div class="box {{if .Success}}success{{else}}error{{end}}">
<div class="icon">{{if .Success}}✓{{else}}✕{{end}}</div>
<div class="msg">{{.Message}}</div>
</div>
<script>
(function () {
  var success = {{.Success}};
  var target = {{.Redirect}};
  if (window.opener && !window.opener.closed) {
    try { window.opener.postMessage({source: "dingtalk-login", success: success}, "*"); } catch (e) {}
    setTimeout(function () {
      if (success) { window.opener.location.reload(); }
      window.close();
    }, success ? 1000 : 3000);
    return;
  }
  if (success) {
    setTimeout(function () { window.location.href = target; }, 1500);
  }
})();
</script>
</body>
</html>
`))

type pageData struct {
	Success  bool
	Message  string
	Redirect string
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, d pageData) {
	if d.Redirect == "" {
		d.Redirect = "/"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, d); err != nil {
		logger.From(r.Context()).Warn("callback page render failed", logger.Err(err))
	}
}
