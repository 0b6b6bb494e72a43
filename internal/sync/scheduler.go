package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler executa SyncAll em intervalo fixo como retaguarda para webhooks
// perdidos ou fora de ordem. Não é o caminho primário de sincronização e
// convive com SyncOne disparado por webhook sobre os mesmos cards; o upsert
// de substituição completa garante que o último a terminar vence.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	running    bool
	lastRunAt  *time.Time
	lastResult *Result
}

// SchedulerStatus resume o estado corrente do agendador.
type SchedulerStatus struct {
	Running         bool       `json:"running"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastResult      *Result    `json:"last_result,omitempty"`
}

// NewScheduler cria o agendador com o intervalo em minutos (mínimo 1).
func NewScheduler(engine *Engine, intervalMinutes int, logger zerolog.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	return &Scheduler{
		engine:   engine,
		interval: time.Duration(intervalMinutes) * time.Minute,
		logger:   logger,
	}
}

// Start dispara uma sincronização imediata e agenda repetições. Chamar com o
// agendador já ativo é um no-op.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().Msg("scheduler: já em execução")
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running = true

	go s.runLoop(ctx)
}

// Stop encerra o loop periódico. Seguro para chamar sem Start prévio.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
}

// Status devolve o estado corrente e o resultado do último ciclo.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStatus{
		Running:         s.running,
		IntervalMinutes: int(s.interval / time.Minute),
		LastRunAt:       s.lastRunAt,
		LastResult:      s.lastResult,
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler: loop iniciado")

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler: loop encerrado")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.engine.SyncAll(ctx)
	now := time.Now()

	s.mu.Lock()
	s.lastRunAt = &now
	if err == nil {
		s.lastResult = &result
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: sincronização falhou")
		return
	}
	if len(result.Errors) > 0 {
		s.logger.Warn().Strs("erros", result.Errors).Msg("scheduler: ciclo com falhas parciais")
	}
}
