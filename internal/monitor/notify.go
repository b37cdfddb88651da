package monitor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"rastreador-precos/internal/metrics"
	"rastreador-precos/internal/models"
)

const (
	kindCleanup = "cleanup"
	kindPrice   = "price"
)

type delivery struct {
	recipient    string
	notification models.Notification
}

// persistAndNotify grava as atualizações, contabiliza as estatísticas por
// plataforma e envia os avisos de mudança de preço
func (r *run) persistAndNotify(ctx context.Context, outcomes []outcome) {
	var deliveries []delivery

	for _, out := range outcomes {
		tag := out.product.PlatformTag()
		stats := r.platform(tag)

		r.summary.Checked++
		stats.Checked++
		switch out.status {
		case StatusIncreased:
			r.summary.Increased++
			stats.Increased++
		case StatusDecreased:
			r.summary.Decreased++
			stats.Decreased++
		case StatusError:
			r.summary.Errors++
			stats.Errors++
		default:
			r.summary.Unchanged++
		}
		metrics.ProductChecks.WithLabelValues(tag, string(out.status)).Inc()

		if out.update != nil {
			if err := r.m.products.UpdateProduct(ctx, out.product.ID, *out.update); err != nil {
				r.summary.PersistErrors++
				r.tracef("Erro ao gravar '%s': %v", out.product.ID, err)
				r.m.log.Error().Err(err).Str("product", out.product.ID).Msg("falha ao gravar atualização de preço")
				continue
			}
			if out.baseline {
				r.summary.Baselines++
			}
		}

		if out.notification == nil {
			continue
		}
		for _, userID := range r.subscribers[out.product.ID] {
			r.notified[userID] = struct{}{}
			stats.Notified++
			deliveries = append(deliveries, delivery{recipient: userID, notification: *out.notification})
		}
	}

	r.summary.NotificationsTotal = len(deliveries)
	r.summary.NotificationsSent, r.summary.NotificationsFailed = r.m.fanOut(ctx, kindPrice, deliveries)
}

// fanOut envia as mensagens em paralelo, com limite de concorrência, e espera
// todas terminarem. Falhas são só contadas.
func (m *Monitor) fanOut(ctx context.Context, kind string, deliveries []delivery) (sent, failed int) {
	if len(deliveries) == 0 {
		return 0, 0
	}

	var ok, ko atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.opts.NotifyConcurrency)

	for _, d := range deliveries {
		d := d
		g.Go(func() error {
			if err := m.notifier.Send(ctx, d.recipient, d.notification); err != nil {
				ko.Add(1)
				metrics.Notifications.WithLabelValues(kind, "failed").Inc()
				m.log.Debug().Err(err).Str("user", d.recipient).Str("kind", kind).Msg("falha ao enviar mensagem")
				return nil
			}
			ok.Add(1)
			metrics.Notifications.WithLabelValues(kind, "sent").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return int(ok.Load()), int(ko.Load())
}
