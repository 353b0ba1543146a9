package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTimeout el intento superó el timeout por petición y fue abortado.
var ErrTimeout = errors.New("httpclient: timeout de petición")

// StatusError respuesta no-2xx del servidor remoto.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Retryable 429, 500 y 503 se consideran transitorios; cualquier otro estado es terminal.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// DecodeError el content-type anuncia JSON pero el cuerpo no lo es. Terminal.
type DecodeError struct {
	URL         string
	ContentType string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("httpclient: respuesta malformada de %s (content-type %q)", e.URL, e.ContentType)
}

// IsTransient clasifica el error: true para TransientNetworkError (timeout, 429/500/503),
// false para errores terminales.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// StatusCode extrae el código HTTP de un error, o 0 si no proviene de una respuesta.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
