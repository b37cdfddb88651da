package monitor

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"rastreador-precos/internal/models"
	"rastreador-precos/internal/price"
)

// Status é a classificação do resultado da verificação de um produto
type Status string

const (
	StatusSame      Status = "same"
	StatusIncreased Status = "increased"
	StatusDecreased Status = "decreased"
	StatusError     Status = "error"
)

// outcome é o resultado da verificação de um produto
type outcome struct {
	product      models.Product
	status       Status
	err          string
	percent      float64
	baseline     bool
	update       *models.ProductUpdate
	notification *models.Notification
}

// refresh consulta a fonte de preços para cada produto, em sequência e com
// pausa entre as consultas. Se o contexto acabar, para e devolve o que já
// foi verificado.
func (r *run) refresh(ctx context.Context, ids []string) []outcome {
	products, err := r.m.products.GetProducts(ctx, ids)
	if err != nil {
		r.summary.LoadError = err.Error()
		r.tracef("\nErro ao carregar produtos: %v", err)
		r.m.log.Error().Err(err).Int("products", len(ids)).Msg("falha ao carregar produtos")
		return nil
	}

	list := make([]models.Product, 0, len(products))
	for _, id := range ids {
		if p, ok := products[id]; ok {
			list = append(list, p)
		}
	}

	r.tracef("\n--- Verificação de preços (%d produtos) ---", len(list))
	r.report(ctx, fmt.Sprintf("⚙️ <b>Verificando %d produtos...</b>", len(list)))

	outcomes := make([]outcome, 0, len(list))
	for i, p := range list {
		if err := r.m.sleep(ctx, r.m.opts.Pacing); err != nil {
			r.summary.Interrupted = true
			r.tracef("\nVerificação interrompida após %d produtos: %v", i, err)
			r.m.log.Warn().Err(err).Int("checked", i).Int("total", len(list)).Msg("verificação interrompida")
			break
		}

		out, err := r.check(ctx, p)
		if err != nil {
			r.summary.Interrupted = true
			r.tracef("\nVerificação interrompida durante a consulta de %s: %v", p.ID, err)
			r.m.log.Warn().Err(err).Str("product", p.ID).Int("checked", i).Int("total", len(list)).Msg("verificação interrompida")
			break
		}
		outcomes = append(outcomes, out)

		if (i+1)%r.m.opts.ProgressEvery == 0 {
			r.report(ctx, fmt.Sprintf("⚙️ <b>Verificando produtos...</b> <code>(%d/%d)</code>", i+1, len(list)))
		}
	}
	return outcomes
}

// check consulta um produto. Só retorna erro quando o contexto do chamador
// acabou durante a consulta; nesse caso o produto não conta como verificado.
func (r *run) check(ctx context.Context, p models.Product) (outcome, error) {
	r.tracef("\n🔍 Verificando: %s", p.URL)

	if p.URL == "" {
		r.tracef("❌ Erro: URL ausente")
		return outcome{product: p, status: StatusError, err: "URL ausente"}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.m.opts.FetchTimeout)
	defer cancel()

	snapshot, err := r.m.source.Fetch(fetchCtx, p.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, ctxErr
		}
		r.tracef("❌ Erro: %v", err)
		r.m.log.Warn().Err(err).Str("product", p.ID).Str("url", p.URL).Msg("falha ao buscar preço")
		return outcome{product: p, status: StatusError, err: err.Error()}, nil
	}

	out := classify(p, snapshot, r.m.now())
	switch {
	case out.baseline:
		r.tracef("🆕 Preço inicial registrado: %s", out.update.CurrentPrice.Display)
	case out.status == StatusSame:
		r.tracef("✅ Variação de preço: nenhuma")
	case out.status == StatusIncreased:
		r.tracef("📈 Variação de preço: aumento de %s", price.FormatPercent(out.percent))
	case out.status == StatusDecreased:
		r.tracef("📉 Variação de preço: queda de %s", price.FormatPercent(out.percent))
	}
	return out, nil
}

// classify compara o preço novo com o gravado.
//
// Preço novo zero ou igual ao gravado: same, nada muda. Sem preço gravado
// (amount 0): same, sem aviso, mas o preço novo é gravado como base para a
// próxima execução. Caso contrário: increased/decreased com atualização e aviso.
func classify(p models.Product, snapshot models.ProductSnapshot, now time.Time) outcome {
	current := price.Normalize(snapshot.CurrentPrice)
	oldAmount, newAmount := p.CurrentPrice.Amount, current.Amount

	out := outcome{product: p, status: StatusSame}
	if newAmount == 0 || newAmount == oldAmount {
		return out
	}

	upd := buildUpdate(p, snapshot, current, now)
	out.update = &upd

	if oldAmount == 0 {
		out.baseline = true
		return out
	}

	out.percent = price.PercentChange(oldAmount, newAmount)
	if newAmount > oldAmount {
		out.status = StatusIncreased
	} else {
		out.status = StatusDecreased
	}

	n := buildNotification(p, upd, out.status, out.percent)
	out.notification = &n
	return out
}

func buildUpdate(p models.Product, snapshot models.ProductSnapshot, current models.PricePair, now time.Time) models.ProductUpdate {
	name := snapshot.Name
	if name == "" {
		name = p.Name
	}
	currency := snapshot.Currency
	if currency == "" {
		currency = p.Currency
	}
	return models.ProductUpdate{
		Name:          name,
		Currency:      currency,
		CurrentPrice:  current,
		OriginalPrice: price.Normalize(snapshot.OriginalPrice),
		Discount:      snapshot.Discount,
		Rating:        snapshot.Rating,
		ReviewsCount:  snapshot.ReviewsCount,
		Images:        snapshot.Images,
		CheckedAt:     now,
	}
}

func buildNotification(p models.Product, upd models.ProductUpdate, status Status, percent float64) models.Notification {
	header := "✅ <b>O preço caiu!</b>"
	if status == StatusIncreased {
		header = "🔺 <b>O preço subiu!</b>"
	}

	name := upd.Name
	if name == "" {
		name = "N/A"
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	fmt.Fprintf(&b, "<b>Produto:</b> <a href=\"%s\">%s</a>\n", html.EscapeString(p.URL), html.EscapeString(name))
	fmt.Fprintf(&b, "<b>Preço anterior:</b> <code>%s</code>\n", html.EscapeString(withCurrency(upd.Currency, p.CurrentPrice.Display)))
	fmt.Fprintf(&b, "<b>Preço atual:</b> <code>%s</code>\n", html.EscapeString(withCurrency(upd.Currency, upd.CurrentPrice.Display)))
	fmt.Fprintf(&b, "<b>Variação:</b> <code>%s</code>", price.FormatPercent(percent))

	if len(upd.Images) > 0 {
		// link invisível para a prévia mostrar a imagem do produto
		fmt.Fprintf(&b, "\n\n<a href=\"%s\">\u200b</a>", html.EscapeString(upd.Images[0]))
	}

	return models.Notification{
		Text:       b.String(),
		ButtonText: "Comprar agora 🛍️",
		ButtonURL:  p.URL,
	}
}

func withCurrency(currency, display string) string {
	if currency == "" || display == "" || strings.HasPrefix(display, currency) {
		return display
	}
	return currency + display
}
