package helpers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/http/errors"
)

// maxBodyBytes limita el body de los requests JSON.
const maxBodyBytes = 1 << 20

// ReadJSON decodifica JSON de forma tolerante (no falla por campos desconocidos).
// Valida Content-Type y limita el body a 1MB. Un body vacío deja v intacto.
// Devuelve false si ya escribió el error HTTP.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := DecodeJSON(w, r, v); err != nil {
		errors.WriteError(w, r, err)
		return false
	}
	return true
}

// DecodeJSON es ReadJSON sin escribir la respuesta: devuelve el AppError
// (bad_request o invalid_json) para que el caller decida cuándo escribirlo.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) *errors.AppError {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return errors.ErrBadRequest.WithDetail("Content-Type debe ser application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Envelope es la respuesta de éxito que consume el frontend del foro.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess escribe {success:true, message, data} con status 200.
func WriteSuccess(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}
