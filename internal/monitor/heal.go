package monitor

import (
	"context"
	"slices"
	"sort"

	"rastreador-precos/internal/metrics"
	"rastreador-precos/internal/models"
)

const cleanupNoticeText = "Desculpe, um dos seus produtos monitorados foi removido porque não é mais válido no nosso banco de dados.\n\n" +
	"Use /my_trackings para conferir sua lista atual."

// heal monta o mapa produto -> assinantes e remove das listas os ids que não
// têm mais produto correspondente. Retorna os ids válidos, ordenados.
func (r *run) heal(ctx context.Context, subscribers []models.Subscriber) []string {
	exists := make(map[string]bool)
	valid := make(map[string]struct{})

	r.tracef("\n--- Limpeza do banco de dados ---")
	for _, sub := range subscribers {
		if sub.ID == "" || len(sub.TrackedIDs) == 0 {
			continue
		}
		r.summary.UsersWithTrackings++
		r.summary.ActiveTrackings += len(sub.TrackedIDs)

		var missing []string
		if slices.Contains(sub.TrackedIDs, "") {
			missing = append(missing, "")
			r.tracef("Referência vazia na lista do usuário '%s'", sub.ID)
		}
		for _, productID := range sub.UniqueTrackedIDs() {
			found, ok := exists[productID]
			if !ok {
				count, err := r.m.products.CountProduct(ctx, productID)
				if err != nil {
					r.summary.HealErrors++
					r.tracef("Erro ao verificar '%s' do usuário '%s': %v", productID, sub.ID, err)
					r.m.log.Error().Err(err).Str("user", sub.ID).Str("product", productID).Msg("falha ao verificar produto")
					continue
				}
				found = count > 0
				exists[productID] = found
			}

			if !found {
				missing = append(missing, productID)
				r.tracef("Referência inválida '%s' do usuário '%s'", productID, sub.ID)
				continue
			}
			valid[productID] = struct{}{}
			r.subscribers[productID] = append(r.subscribers[productID], sub.ID)
		}

		if len(missing) == 0 {
			continue
		}
		if err := r.m.users.RemoveTrackedIDs(ctx, sub.ID, missing); err != nil {
			r.summary.HealErrors++
			r.tracef("Erro ao remover %d referências do usuário '%s': %v", len(missing), sub.ID, err)
			r.m.log.Error().Err(err).Str("user", sub.ID).Strs("products", missing).Msg("falha ao remover referências inválidas")
			continue
		}
		r.summary.PrunedRefs += len(missing)
		r.cleanup = append(r.cleanup, sub.ID)
		metrics.PrunedRefs.Add(float64(len(missing)))
		r.tracef("Removidas %d referências do usuário '%s'", len(missing), sub.ID)
	}

	ids := make([]string, 0, len(valid))
	for id := range valid {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sendCleanupNotices avisa, em paralelo, quem teve itens removidos
func (r *run) sendCleanupNotices(ctx context.Context) {
	if len(r.cleanup) == 0 {
		return
	}

	deliveries := make([]delivery, 0, len(r.cleanup))
	for _, userID := range r.cleanup {
		deliveries = append(deliveries, delivery{
			recipient:    userID,
			notification: models.Notification{Text: cleanupNoticeText},
		})
	}

	sent, failed := r.m.fanOut(ctx, kindCleanup, deliveries)
	r.summary.CleanupSent = sent
	r.summary.CleanupFailed = failed
	r.tracef("\nAvisos de limpeza enviados para %d usuários (%d falhas).", sent, failed)
}
