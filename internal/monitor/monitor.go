package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rastreador-precos/internal/metrics"
)

// ErrRunInProgress é retornado quando já existe uma verificação em andamento
var ErrRunInProgress = errors.New("verificação de preços já em andamento")

const (
	defaultPacing            = 3 * time.Second
	defaultFetchTimeout      = 45 * time.Second
	defaultNotifyConcurrency = 16
	defaultProgressEvery     = 10
	defaultFinalizeGrace     = 2 * time.Minute
)

// Options controla o ritmo e os limites de uma execução
type Options struct {
	Interval          time.Duration // Intervalo entre execuções agendadas
	RunTimeout        time.Duration // Limite de tempo de uma execução agendada (0 = sem limite)
	Pacing            time.Duration // Pausa antes de cada consulta (0 = padrão, negativo = sem pausa)
	FetchTimeout      time.Duration
	NotifyConcurrency int
	ProgressEvery     int
	FinalizeGrace     time.Duration // Tempo extra para gravar e notificar após o limite estourar
}

func (o Options) withDefaults() Options {
	switch {
	case o.Pacing < 0:
		o.Pacing = 0
	case o.Pacing == 0:
		o.Pacing = defaultPacing
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.NotifyConcurrency <= 0 {
		o.NotifyConcurrency = defaultNotifyConcurrency
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = defaultProgressEvery
	}
	if o.FinalizeGrace <= 0 {
		o.FinalizeGrace = defaultFinalizeGrace
	}
	if o.Interval <= 0 {
		o.Interval = 5 * time.Hour
	}
	return o
}

// DefaultOptions retorna as opções usadas quando nada é configurado
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

// Monitor reconcilia assinantes e produtos, atualiza preços e avisa os
// interessados. Uma execução não é reentrante: use Trigger para garantir
// exclusividade.
type Monitor struct {
	products ProductStore
	users    UserStore
	source   Source
	notifier Notifier
	sink     ReportSink
	log      zerolog.Logger
	opts     Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// New cria uma nova instância do monitor
func New(products ProductStore, users UserStore, source Source, notifier Notifier, sink ReportSink, log zerolog.Logger, opts Options) *Monitor {
	return &Monitor{
		products: products,
		users:    users,
		source:   source,
		notifier: notifier,
		sink:     sink,
		log:      log.With().Str("component", "monitor").Logger(),
		opts:     opts.withDefaults(),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Start executa uma verificação imediatamente e depois a cada intervalo,
// até o contexto ser cancelado
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info().Dur("interval", m.opts.Interval).Msg("monitor iniciado")

	m.scheduledRun(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor encerrado")
			return
		case <-ticker.C:
			m.scheduledRun(ctx)
		}
	}
}

func (m *Monitor) scheduledRun(ctx context.Context) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
	}
	defer cancel()

	summary, err := m.Trigger(runCtx, nil)
	switch {
	case errors.Is(err, ErrRunInProgress):
		m.log.Warn().Msg("execução agendada ignorada: outra verificação em andamento")
	case err != nil:
		m.log.Error().Err(err).Msg("verificação agendada falhou")
	default:
		m.log.Info().
			Int("checked", summary.Checked).
			Int("increased", summary.Increased).
			Int("decreased", summary.Decreased).
			Int("errors", summary.Errors).
			Int("pruned", summary.PrunedRefs).
			Dur("duration", summary.Duration).
			Msg("verificação agendada concluída")
	}
}

// Trigger executa uma verificação se nenhuma outra estiver em andamento
func (m *Monitor) Trigger(ctx context.Context, progress Progress) (*Summary, error) {
	if !m.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer m.mu.Unlock()
	return m.Run(ctx, progress)
}

// Run executa uma reconciliação completa: limpa referências inválidas,
// atualiza os preços, grava as mudanças, notifica e publica o resumo.
// Só a falha ao listar os assinantes interrompe a execução.
func (m *Monitor) Run(ctx context.Context, progress Progress) (*Summary, error) {
	r := m.newRun(progress)
	r.tracef("*** Log da verificação de preços: %s ***", r.summary.StartedAt.Format("2006-01-02 15:04:05"))
	r.report(ctx, "🔎 <b>Iniciando verificação de preços...</b>")

	subscribers, err := m.users.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar assinantes: %w", err)
	}

	valid := r.heal(ctx, subscribers)
	r.sendCleanupNotices(ctx)

	if len(valid) == 0 {
		r.summary.NothingTracked = true
		r.tracef("\nNenhum produto válido para verificar.")
	} else {
		outcomes := r.refresh(ctx, valid)

		finalCtx, cancel := m.finalizeContext(ctx)
		r.persistAndNotify(finalCtx, outcomes)
		cancel()
	}

	r.finish()

	publishCtx, cancel := m.finalizeContext(ctx)
	defer cancel()
	m.publish(publishCtx, &r.summary, r.trace.Bytes())
	r.report(publishCtx, r.summary.Text())

	return &r.summary, nil
}

// finalizeContext mantém o contexto do chamador enquanto ele estiver válido.
// Se o limite de tempo já estourou, o trabalho feito ainda é gravado e
// notificado dentro de uma janela curta.
func (m *Monitor) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), m.opts.FinalizeGrace)
}

func (m *Monitor) publish(ctx context.Context, s *Summary, detail []byte) {
	metrics.ObserveRun(s.StartedAt, s.Duration)

	if m.sink == nil {
		return
	}
	if err := m.sink.Publish(ctx, s.Text(), detail); err != nil {
		m.log.Error().Err(err).Msg("falha ao publicar resumo da verificação")
	}
}

// run guarda o estado de uma única execução
type run struct {
	m        *Monitor
	progress Progress
	trace    bytes.Buffer
	summary  Summary

	// produto -> assinantes interessados
	subscribers map[string][]string
	cleanup     []string
	platforms   map[string]*PlatformStats
	notified    map[string]struct{}
}

func (m *Monitor) newRun(progress Progress) *run {
	return &run{
		m:           m,
		progress:    progress,
		summary:     Summary{StartedAt: m.now()},
		subscribers: make(map[string][]string),
		platforms:   make(map[string]*PlatformStats),
		notified:    make(map[string]struct{}),
	}
}

func (r *run) tracef(format string, args ...any) {
	fmt.Fprintf(&r.trace, format+"\n", args...)
}

func (r *run) report(ctx context.Context, text string) {
	if r.progress == nil {
		return
	}
	r.progress.Update(ctx, text)
}

func (r *run) platform(tag string) *PlatformStats {
	stats, ok := r.platforms[tag]
	if !ok {
		stats = &PlatformStats{Platform: tag}
		r.platforms[tag] = stats
	}
	return stats
}

func (r *run) finish() {
	r.summary.Duration = r.m.now().Sub(r.summary.StartedAt)
	r.summary.NotifiedUnique = len(r.notified)

	r.summary.Platforms = make([]PlatformStats, 0, len(r.platforms))
	for _, stats := range r.platforms {
		r.summary.Platforms = append(r.summary.Platforms, *stats)
	}
	sort.Slice(r.summary.Platforms, func(i, j int) bool {
		return r.summary.Platforms[i].Platform < r.summary.Platforms[j].Platform
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
