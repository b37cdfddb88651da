package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const topUsersLimit = 10

// UserUsage é a quantidade de monitoramentos válidos de um usuário
type UserUsage struct {
	UserID    string
	Trackings int
}

// SourceUsage é a quantidade de produtos ativos de uma loja
type SourceUsage struct {
	Source   string
	Products int
}

// UsageReport contém as estatísticas de uso do bot
type UsageReport struct {
	TotalUsers     int
	ValidTrackings int
	Sources        []SourceUsage // ordenado pelo nome da loja
	TopUsers       []UserUsage
	Elapsed        time.Duration
}

// Usage calcula as estatísticas de uso considerando só os monitoramentos que
// apontam para produtos existentes
func Usage(ctx context.Context, users UserStore, products ProductStore) (*UsageReport, error) {
	start := time.Now()

	subscribers, err := users.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar assinantes: %w", err)
	}

	active := make(map[string]struct{})
	for _, sub := range subscribers {
		for _, id := range sub.UniqueTrackedIDs() {
			active[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	found := map[string]struct{}{}
	sourceCounts := map[string]int{}
	if len(ids) > 0 {
		existing, err := products.GetProducts(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("carregar produtos: %w", err)
		}
		for id, p := range existing {
			found[id] = struct{}{}
			sourceCounts[p.PlatformTag()]++
		}
	}

	report := &UsageReport{TotalUsers: len(subscribers)}
	for _, sub := range subscribers {
		if sub.ID == "" {
			continue
		}
		valid := 0
		for _, id := range sub.UniqueTrackedIDs() {
			if _, ok := found[id]; ok {
				valid++
			}
		}
		if valid > 0 {
			report.TopUsers = append(report.TopUsers, UserUsage{UserID: sub.ID, Trackings: valid})
		}
		report.ValidTrackings += valid
	}

	sort.Slice(report.TopUsers, func(i, j int) bool {
		a, b := report.TopUsers[i], report.TopUsers[j]
		if a.Trackings != b.Trackings {
			return a.Trackings > b.Trackings
		}
		return a.UserID < b.UserID
	})
	if len(report.TopUsers) > topUsersLimit {
		report.TopUsers = report.TopUsers[:topUsersLimit]
	}

	for source, count := range sourceCounts {
		report.Sources = append(report.Sources, SourceUsage{Source: source, Products: count})
	}
	sort.Slice(report.Sources, func(i, j int) bool { return report.Sources[i].Source < report.Sources[j].Source })

	report.Elapsed = time.Since(start)
	return report, nil
}

// Text formata o relatório para o /stats
func (u *UsageReport) Text() string {
	var b strings.Builder
	b.WriteString("📊 <b>Estatísticas de uso do bot</b>\n\n")
	fmt.Fprintf(&b, "<b>👤 Total de usuários:</b> <code>%d</code>\n", u.TotalUsers)
	fmt.Fprintf(&b, "<b>🔗 Monitoramentos ativos:</b> <code>%d</code>\n\n", u.ValidTrackings)

	b.WriteString("📈 <b>Monitoramentos por loja (ativos):</b>\n")
	if len(u.Sources) == 0 {
		b.WriteString("  Nenhum produto ativo encontrado.\n")
	}
	for _, s := range u.Sources {
		fmt.Fprintf(&b, "  - <b>%s:</b> <code>%d</code> produtos\n", capitalize(s.Source), s.Products)
	}

	b.WriteString("\n🏆 <b>Top 10 usuários por monitoramentos:</b>\n")
	if len(u.TopUsers) == 0 {
		b.WriteString("  Nenhum usuário com monitoramentos ativos.\n")
	}
	for i, usr := range u.TopUsers {
		fmt.Fprintf(&b, "  <code>%d.</code> Usuário <code>%s</code> - <b>%d</b> monitoramentos\n", i+1, usr.UserID, usr.Trackings)
	}

	fmt.Fprintf(&b, "\n⏱️ <code>Relatório gerado em %.2f segundos</code>", u.Elapsed.Seconds())
	return b.String()
}
