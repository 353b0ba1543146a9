package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrMissingCredentials = errors.New("seller sin credenciales para el marketplace")
	ErrUnknownMarketplace = errors.New("marketplace desconocido")
	ErrCycleRunning       = errors.New("ya hay un ciclo de sincronización en curso")
)
