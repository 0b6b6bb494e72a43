package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condição não alcançada no prazo")
}

func TestSchedulerStartRunsImmediately(t *testing.T) {
	board := boardFixture()
	store := newStubStore()
	engine := NewEngine(board, store, nil, zerolog.Nop())
	scheduler := NewScheduler(engine, 60, zerolog.Nop())

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool {
		return scheduler.Status().LastRunAt != nil
	})

	status := scheduler.Status()
	if !status.Running {
		t.Error("agendador deveria estar ativo")
	}
	if status.IntervalMinutes != 60 {
		t.Errorf("intervalo esperado 60, veio %d", status.IntervalMinutes)
	}
	if status.LastResult == nil || status.LastResult.CardsProcessed != 2 {
		t.Errorf("último resultado inesperado: %+v", status.LastResult)
	}
}

func TestSchedulerDoubleStart(t *testing.T) {
	engine := NewEngine(boardFixture(), newStubStore(), nil, zerolog.Nop())
	scheduler := NewScheduler(engine, 60, zerolog.Nop())

	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	if !scheduler.Status().Running {
		t.Error("agendador deveria continuar ativo após segundo Start")
	}
}

func TestSchedulerStop(t *testing.T) {
	engine := NewEngine(boardFixture(), newStubStore(), nil, zerolog.Nop())
	scheduler := NewScheduler(engine, 60, zerolog.Nop())

	scheduler.Start(context.Background())
	scheduler.Stop()

	if scheduler.Status().Running {
		t.Error("agendador deveria estar parado após Stop")
	}

	// Stop repetido é seguro
	scheduler.Stop()
}

func TestSchedulerDefaultInterval(t *testing.T) {
	engine := NewEngine(boardFixture(), newStubStore(), nil, zerolog.Nop())
	scheduler := NewScheduler(engine, 0, zerolog.Nop())

	if got := scheduler.Status().IntervalMinutes; got != 30 {
		t.Errorf("intervalo default esperado 30, veio %d", got)
	}
}
