// Package scheduler dispara los ciclos de sincronización y pronóstico, garantiza que nunca
// haya dos ciclos a la vez y publica el resumen de cada ciclo.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockout-sync/internal/application/alerts"
	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// SellerSyncer sincroniza un seller con su marketplace.
type SellerSyncer interface {
	Sync(ctx context.Context, seller *entity.Seller) (inventorysync.Result, error)
}

// ForecastRecalculator recalcula los pronósticos de un seller.
type ForecastRecalculator interface {
	RecalculateSeller(ctx context.Context, seller *entity.Seller) (int, error)
}

// AlertEvaluator evalúa las alertas de todo el sistema.
type AlertEvaluator interface {
	Evaluate(ctx context.Context) (alerts.Result, error)
}

// Locker lease distribuido opcional para que dos réplicas no ejecuten ciclos a la vez.
type Locker interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ErrStopped el scheduler ya recibió Stop y no acepta más ciclos.
var ErrStopped = errors.New("scheduler: detenido")

// Trigger origen de un ciclo.
type Trigger string

const (
	TriggerCron      Trigger = "cron"
	TriggerBootstrap Trigger = "bootstrap"
	TriggerManual    Trigger = "manual"
)

// Config cadencia y paralelismo.
type Config struct {
	Cron string // expresión cron estándar de 5 campos
	// BootstrapDelay espera del ciclo inicial tras Start; negativo lo desactiva.
	BootstrapDelay time.Duration
	Concurrency    int // sellers en paralelo; 1 = secuencial
	LockTTL        time.Duration
}

// DefaultConfig inicio de cada hora, ciclo inicial a los 10 s, secuencial.
func DefaultConfig() Config {
	return Config{Cron: "0 * * * *", BootstrapDelay: 10 * time.Second, Concurrency: 1, LockTTL: 55 * time.Minute}
}

// Deps colaboradores del ciclo. Locker es opcional.
type Deps struct {
	Sellers    repository.SellerRepository
	Syncer     SellerSyncer
	Forecaster ForecastRecalculator
	Alerts     AlertEvaluator
	Locker     Locker
}

// CycleReport resumen de un ciclo.
type CycleReport struct {
	ID               string        `json:"id"`
	Trigger          Trigger       `json:"trigger"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration_ns"`
	SellersTotal     int           `json:"sellers_total"`
	SellersSucceeded int           `json:"sellers_succeeded"`
	SellersFailed    int           `json:"sellers_failed"`
	Forecasts        int           `json:"forecasts"`
	Alerts           int           `json:"alerts"`
	Err              string        `json:"error,omitempty"`
}

// Scheduler estados Idle/Running; el paso Idle→Running es un compare-and-swap atómico.
type Scheduler struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger
	cron *cron.Cron

	running atomic.Bool
	wg      sync.WaitGroup

	mu        sync.Mutex
	stopping  bool
	bootstrap *time.Timer
	last      *CycleReport
}

// New valida la expresión cron y construye el scheduler (sin arrancarlo).
func New(deps Deps, cfg Config, log zerolog.Logger) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.Cron == "" {
		cfg.Cron = def.Cron
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if deps.Sellers == nil || deps.Syncer == nil || deps.Forecaster == nil || deps.Alerts == nil {
		return nil, errors.New("scheduler: faltan dependencias")
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("scheduler: expresión cron %q: %w", cfg.Cron, err)
	}
	return &Scheduler{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "scheduler").Logger(),
		cron: cron.New(),
	}, nil
}

// Start registra el disparo periódico y programa el ciclo inicial.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.trigger(TriggerCron) }); err != nil {
		return fmt.Errorf("scheduler: registrar cron: %w", err)
	}
	s.cron.Start()

	if s.cfg.BootstrapDelay >= 0 {
		s.mu.Lock()
		s.bootstrap = time.AfterFunc(s.cfg.BootstrapDelay, func() { s.trigger(TriggerBootstrap) })
		s.mu.Unlock()
	}
	s.log.Info().Str("cron", s.cfg.Cron).Dur("bootstrap_delay", s.cfg.BootstrapDelay).
		Int("concurrency", s.cfg.Concurrency).Msg("scheduler iniciado")
	return nil
}

// Stop detiene los disparos futuros y espera a que termine el ciclo en curso o a que venza ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	if s.bootstrap != nil {
		s.bootstrap.Stop()
	}
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("scheduler detenido")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: el ciclo en curso no terminó a tiempo: %w", ctx.Err())
	}
}

// RunNow ejecuta un ciclo de forma síncrona. Devuelve domain.ErrCycleRunning si ya hay uno.
// El ciclo no se interrumpe si ctx se cancela.
func (s *Scheduler) RunNow(ctx context.Context) (CycleReport, error) {
	return s.runCycle(context.WithoutCancel(ctx), TriggerManual)
}

// Running indica si hay un ciclo en curso.
func (s *Scheduler) Running() bool { return s.running.Load() }

// LastReport resumen del último ciclo completado.
func (s *Scheduler) LastReport() (CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) trigger(t Trigger) {
	if _, err := s.runCycle(context.Background(), t); err != nil && !errors.Is(err, domain.ErrCycleRunning) {
		s.log.Error().Err(err).Str("trigger", string(t)).Msg("no se pudo iniciar el ciclo")
	}
}

func (s *Scheduler) runCycle(ctx context.Context, trigger Trigger) (report CycleReport, err error) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return CycleReport{}, ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.log.Warn().Str("trigger", string(trigger)).Msg("ciclo en curso, se descarta el disparo")
		return CycleReport{}, domain.ErrCycleRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer s.running.Store(false)

	if s.deps.Locker != nil {
		release, ok, lerr := s.deps.Locker.TryAcquire(ctx, s.cfg.LockTTL)
		switch {
		case lerr != nil:
			s.log.Warn().Err(lerr).Msg("lease distribuido no disponible, se continúa con el guard local")
		case !ok:
			s.log.Warn().Str("trigger", string(trigger)).Msg("otra réplica ejecuta un ciclo, se descarta el disparo")
			return CycleReport{}, domain.ErrCycleRunning
		default:
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					s.log.Warn().Err(rerr).Msg("no se pudo liberar el lease distribuido")
				}
			}()
		}
	}

	report = CycleReport{ID: uuid.NewString(), Trigger: trigger, StartedAt: time.Now().UTC()}
	log := s.log.With().Str("cycle_id", report.ID).Str("trigger", string(trigger)).Logger()
	log.Info().Msg("ciclo iniciado")

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Sprintf("panic: %v", r)
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("fallo inesperado en el ciclo")
		}
		report.Duration = time.Since(report.StartedAt)
		s.mu.Lock()
		last := report
		s.last = &last
		s.mu.Unlock()
		logSummary(log, report)
	}()

	s.execute(ctx, &report, log)
	return report, nil
}

// execute pasos 1-3 del ciclo; los errores quedan en report.Err.
func (s *Scheduler) execute(ctx context.Context, report *CycleReport, log zerolog.Logger) {
	sellers, err := s.deps.Sellers.ListActive(ctx)
	if err != nil {
		report.Err = fmt.Sprintf("listar sellers activos: %v", err)
		log.Error().Err(err).Msg("no se pudieron listar los sellers")
		return
	}
	report.SellersTotal = len(sellers)
	if len(sellers) == 0 {
		log.Info().Msg("sin sellers activos")
		return
	}

	var succeeded, failed, forecasts atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, seller := range sellers {
		seller := seller
		g.Go(func() error {
			ok, n := s.processSeller(ctx, seller, log)
			if ok {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			forecasts.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()
	report.SellersSucceeded = int(succeeded.Load())
	report.SellersFailed = int(failed.Load())
	report.Forecasts = int(forecasts.Load())

	res, err := s.deps.Alerts.Evaluate(ctx)
	if err != nil {
		report.Err = fmt.Sprintf("evaluar alertas: %v", err)
		log.Error().Err(err).Msg("no se pudieron evaluar las alertas")
		return
	}
	report.Alerts = res.Count
}

// processSeller aísla al seller: ni un error ni un panic afectan a los demás.
func (s *Scheduler) processSeller(ctx context.Context, seller *entity.Seller, log zerolog.Logger) (ok bool, forecasts int) {
	log = log.With().Str("seller_id", seller.ID).Str("marketplace", string(seller.Marketplace)).Logger()
	defer func() {
		if r := recover(); r != nil {
			ok = false
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("fallo inesperado procesando el seller")
		}
	}()

	if _, err := s.deps.Syncer.Sync(ctx, seller); err != nil {
		log.Error().Err(err).Msg("sincronización del seller fallida")
		return false, 0
	}
	n, err := s.deps.Forecaster.RecalculateSeller(ctx, seller)
	if err != nil {
		log.Error().Err(err).Msg("recálculo de pronósticos fallido")
	}
	return true, n
}

func logSummary(log zerolog.Logger, r CycleReport) {
	ev := log.Info()
	if r.Err != "" {
		ev = log.Error().Str("error", r.Err)
	}
	ev.Int64("duration_ms", r.Duration.Milliseconds()).
		Int("sellers_total", r.SellersTotal).
		Int("sellers_ok", r.SellersSucceeded).
		Int("sellers_failed", r.SellersFailed).
		Int("forecasts", r.Forecasts).
		Int("alerts", r.Alerts).
		Msg("ciclo completado")
}
