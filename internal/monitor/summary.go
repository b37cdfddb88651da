package monitor

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"rastreador-precos/internal/price"
)

// PlatformStats contabiliza os resultados de uma plataforma
type PlatformStats struct {
	Platform  string
	Checked   int
	Increased int
	Decreased int
	Errors    int
	Notified  int
}

// Summary é o resumo de uma execução do monitor
type Summary struct {
	StartedAt time.Time
	Duration  time.Duration

	NothingTracked bool
	Interrupted    bool
	LoadError      string

	Checked   int
	Increased int
	Decreased int
	Unchanged int
	Errors    int
	Baselines int

	// Platforms vem ordenado pelo nome da plataforma
	Platforms []PlatformStats

	ActiveTrackings    int // referências brutas, antes da validação
	UsersWithTrackings int

	NotifiedUnique      int
	NotificationsTotal  int
	NotificationsSent   int
	NotificationsFailed int

	CleanupSent   int
	CleanupFailed int
	PrunedRefs    int
	HealErrors    int
	PersistErrors int
}

// AvgPerProduct retorna o tempo médio por produto ou "N/A" sem produtos
func (s *Summary) AvgPerProduct() string {
	if s.Checked == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2fs", s.Duration.Seconds()/float64(s.Checked))
}

// Text formata o resumo para o canal de logs e para o /check
func (s *Summary) Text() string {
	if s.NothingTracked {
		text := "🤷‍♂️ Nenhum produto está sendo monitorado no momento."
		if s.PrunedRefs > 0 {
			text += fmt.Sprintf("\n\n🧹 Referências removidas: <code>%d</code>", s.PrunedRefs)
		}
		return text
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s Verificação de preços concluída!</b>\n\n", s.StartedAt.Format("#Jan02"))

	b.WriteString("📊 <b>Resumo geral:</b>\n")
	fmt.Fprintf(&b, "- Produtos verificados: <code>%d</code>\n", s.Checked)
	fmt.Fprintf(&b, "- Monitoramentos ativos: <code>%d</code>\n", s.ActiveTrackings)
	fmt.Fprintf(&b, "- Usuários com monitoramentos: <code>%d</code>\n\n", s.UsersWithTrackings)

	b.WriteString("📈 <b>Mudanças de preço:</b>\n")
	fmt.Fprintf(&b, "- Subiram: <code>%d</code> | Caíram: <code>%d</code> | Sem mudança: <code>%d</code>\n", s.Increased, s.Decreased, s.Unchanged)
	if s.Baselines > 0 {
		fmt.Fprintf(&b, "- Preços iniciais registrados: <code>%d</code>\n", s.Baselines)
	}
	b.WriteString("\n")

	b.WriteString("🔍 <b>Por plataforma:</b>\n")
	lines := 0
	for _, p := range s.Platforms {
		if p.Checked == 0 {
			continue
		}
		fmt.Fprintf(&b, "🌐 <b>%s</b>: <code>%d</code> verificados, <code>%d</code> altas, <code>%d</code> quedas, <code>%d</code> erros, <code>%d</code> avisos.\n",
			capitalize(p.Platform), p.Checked, p.Increased, p.Decreased, p.Errors, p.Notified)
		lines++
	}
	if lines == 0 {
		b.WriteString("⚠️ Sem dados de plataforma.\n")
	}
	b.WriteString("\n")

	b.WriteString("🔔 <b>Notificações de preço:</b>\n")
	fmt.Fprintf(&b, "- Usuários notificados: <code>%d</code>\n", s.NotifiedUnique)
	fmt.Fprintf(&b, "- Enviadas: <code>%d/%d</code> | Falhas: <code>%d</code>\n\n", s.NotificationsSent, s.NotificationsTotal, s.NotificationsFailed)

	b.WriteString("⚙️ <b>Saúde do sistema:</b>\n")
	fmt.Fprintf(&b, "- Erros de API/scraping: <code>%d</code>\n", s.Errors)
	fmt.Fprintf(&b, "- Referências removidas: <code>%d</code> (avisos: <code>%d</code>, falhas: <code>%d</code>)\n", s.PrunedRefs, s.CleanupSent, s.CleanupFailed)
	if s.HealErrors > 0 {
		fmt.Fprintf(&b, "- Erros na limpeza: <code>%d</code>\n", s.HealErrors)
	}
	if s.PersistErrors > 0 {
		fmt.Fprintf(&b, "- Erros ao gravar: <code>%d</code>\n", s.PersistErrors)
	}
	if s.LoadError != "" {
		fmt.Fprintf(&b, "- Erro ao carregar produtos: <code>%s</code>\n", html.EscapeString(s.LoadError))
	}
	if s.Interrupted {
		b.WriteString("- ⚠️ Execução interrompida pelo limite de tempo\n")
	}
	b.WriteString("\n")

	b.WriteString("⏱️ <b>Desempenho:</b>\n")
	fmt.Fprintf(&b, "- Tempo médio por produto: <code>%s</code>\n", s.AvgPerProduct())
	fmt.Fprintf(&b, "- Tempo total: <code>%s</code>", price.FormatDuration(s.Duration))

	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
