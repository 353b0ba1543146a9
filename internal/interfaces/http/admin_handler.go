package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/application/dto"
	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/application/scheduler"
	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

const maxSalesDays = 90

// CycleRunner lo implementa *scheduler.Scheduler.
type CycleRunner interface {
	RunNow(ctx context.Context) (scheduler.CycleReport, error)
	Running() bool
	LastReport() (scheduler.CycleReport, bool)
}

// AdminHandler operaciones de soporte: disparo manual, estado y consulta de ventas.
type AdminHandler struct {
	cycles            CycleRunner
	sellers           repository.SellerRepository
	clients           inventorysync.ClientProvider
	salesLookbackDays int
	log               zerolog.Logger
	now               func() time.Time
}

// NewAdminHandler construye el handler.
func NewAdminHandler(cycles CycleRunner, sellers repository.SellerRepository, clients inventorysync.ClientProvider, salesLookbackDays int, log zerolog.Logger) *AdminHandler {
	if salesLookbackDays <= 0 {
		salesLookbackDays = 7
	}
	return &AdminHandler{
		cycles:            cycles,
		sellers:           sellers,
		clients:           clients,
		salesLookbackDays: salesLookbackDays,
		log:               log.With().Str("component", "admin_http").Logger(),
		now:               time.Now,
	}
}

// RunSync dispara un ciclo. Por defecto responde 202 y el ciclo corre en segundo plano;
// con ?wait=true espera y devuelve el resumen.
func (h *AdminHandler) RunSync(c *fiber.Ctx) error {
	if h.cycles.Running() {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CYCLE_RUNNING", Message: domain.ErrCycleRunning.Error()})
	}
	if c.QueryBool("wait", false) {
		report, err := h.cycles.RunNow(c.UserContext())
		if errors.Is(err, domain.ErrCycleRunning) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CYCLE_RUNNING", Message: err.Error()})
		}
		if errors.Is(err, scheduler.ErrStopped) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
		return c.JSON(toCycleResponse(report))
	}

	subject := GetSubject(c)
	go func() {
		if _, err := h.cycles.RunNow(context.Background()); err != nil {
			h.log.Warn().Err(err).Str("subject", subject).Msg("ciclo manual no completado")
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// Status estado actual y resumen del último ciclo.
func (h *AdminHandler) Status(c *fiber.Ctx) error {
	out := dto.SyncStatusResponse{Running: h.cycles.Running()}
	if last, ok := h.cycles.LastReport(); ok {
		r := toCycleResponse(last)
		out.LastCycle = &r
	}
	return c.JSON(out)
}

// SellerSales ventas de los últimos ?days=N días leídas en vivo del marketplace.
func (h *AdminHandler) SellerSales(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	days := c.QueryInt("days", h.salesLookbackDays)
	if days < 1 || days > maxSalesDays {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "days debe estar entre 1 y 90"})
	}

	ctx := c.UserContext()
	seller, err := h.sellers.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "seller no encontrado"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	client, err := h.clients.ClientFor(ctx, seller)
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "MISSING_CREDENTIALS", Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownMarketplace):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "UNKNOWN_MARKETPLACE", Message: err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "MARKETPLACE_AUTH", Message: err.Error()})
	}

	to := h.now().UTC()
	from := to.AddDate(0, 0, -days)
	sales, err := client.FetchSales(ctx, from, to)
	if err != nil {
		status := fiber.StatusBadGateway
		if httpclient.IsTransient(err) {
			status = fiber.StatusServiceUnavailable
		}
		h.log.Warn().Err(err).Str("seller_id", id).Msg("consulta de ventas fallida")
		return c.Status(status).JSON(dto.ErrorResponse{Code: "MARKETPLACE_ERROR", Message: err.Error()})
	}

	out := dto.SalesResponse{
		SellerID:    seller.ID,
		Marketplace: seller.Marketplace.String(),
		From:        from,
		To:          to,
		Count:       len(sales),
		Sales:       sales,
	}
	for _, s := range sales {
		out.Units += s.Quantity
	}
	return c.JSON(out)
}

func toCycleResponse(r scheduler.CycleReport) dto.CycleResponse {
	return dto.CycleResponse{
		ID:               r.ID,
		Trigger:          string(r.Trigger),
		StartedAt:        r.StartedAt,
		DurationMs:       r.Duration.Milliseconds(),
		SellersTotal:     r.SellersTotal,
		SellersSucceeded: r.SellersSucceeded,
		SellersFailed:    r.SellersFailed,
		Forecasts:        r.Forecasts,
		Alerts:           r.Alerts,
		Error:            r.Err,
	}
}
