package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "price_check_run_seconds",
		Help:    "Duração de uma verificação completa de preços",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
	})
	LastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "price_check_last_run_timestamp_seconds",
		Help: "Início da última verificação concluída",
	})
	ProductChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_check_products_total",
		Help: "Produtos verificados por plataforma e resultado",
	}, []string{"platform", "status"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_check_notifications_total",
		Help: "Mensagens enviadas pelo monitor por tipo e resultado",
	}, []string{"kind", "status"})
	PrunedRefs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_check_pruned_refs_total",
		Help: "Referências inválidas removidas das listas dos usuários",
	})
	SourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_source_requests_total",
		Help: "Consultas às fontes de preço",
	}, []string{"source", "status"})
)

// MustRegister registra as métricas.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RunDuration,
		LastRun,
		ProductChecks,
		Notifications,
		PrunedRefs,
		SourceRequests,
	)
}

// ObserveRun registra a duração de uma verificação.
func ObserveRun(started time.Time, duration time.Duration) {
	RunDuration.Observe(duration.Seconds())
	LastRun.Set(float64(started.Unix()))
}

// ObserveSource registra o resultado de uma consulta a uma fonte de preço.
func ObserveSource(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SourceRequests.WithLabelValues(source, status).Inc()
}

// NewRouter monta as rotas de saúde e de métricas.
func NewRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// StartServer sobe o servidor HTTP de saúde e métricas até o contexto acabar.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string, gatherer prometheus.Gatherer) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(gatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: falha no desligamento do servidor")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: servidor iniciado")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: servidor parado")
		}
	}()
}
