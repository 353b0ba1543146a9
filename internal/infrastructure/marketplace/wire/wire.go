// Package wire contiene tipos tolerantes para decodificar respuestas de marketplaces:
// campos numéricos que llegan como número, string o null, e identificadores numéricos o de texto.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Int entero tolerante: acepta 5, 5.0, "5", null o ausente (0). Nunca falla.
type Int int

func (i *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*i = Int(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*i = Int(int(f))
		return nil
	}
	*i = 0
	return nil
}

// String texto tolerante: acepta "abc", 123 o null. Objetos y arreglos quedan vacíos.
type String string

func (s *String) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*s = ""
			return nil
		}
		*s = String(strings.TrimSpace(v))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		*s = ""
		return nil
	}
	*s = String(string(b))
	return nil
}

// Date fecha tolerante: RFC3339 o YYYY-MM-DD; cualquier otra cosa queda en cero.
type Date time.Time

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Date(t.UTC())
			return nil
		}
	}
	*d = Date(time.Time{})
	return nil
}

// Time devuelve el valor como time.Time.
func (d Date) Time() time.Time { return time.Time(d) }

// Partial indica si el error de decodificación dejó datos utilizables.
// encoding/json sigue llenando el resto de campos tras un *json.UnmarshalTypeError.
func Partial(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

// NonNegative acota a cero los valores negativos.
func NonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
