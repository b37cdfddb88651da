package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryText(t *testing.T) {
	s := Summary{
		StartedAt:           time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC),
		Duration:            75 * time.Second,
		Checked:             3,
		Increased:           1,
		Decreased:           1,
		Unchanged:           1,
		Errors:              1,
		ActiveTrackings:     4,
		UsersWithTrackings:  2,
		NotifiedUnique:      2,
		NotificationsTotal:  2,
		NotificationsSent:   1,
		NotificationsFailed: 1,
		PrunedRefs:          1,
		CleanupSent:         1,
		LoadError:           "<falha>",
		Platforms: []PlatformStats{
			{Platform: "amazon", Checked: 2, Decreased: 1, Notified: 3},
			{Platform: "ignorada"},
			{Platform: "flipkart", Checked: 1, Increased: 1, Errors: 1},
		},
	}

	text := s.Text()
	assert.Contains(t, text, "#Mar07 Verificação de preços concluída!")
	assert.Contains(t, text, "Subiram: <code>1</code> | Caíram: <code>1</code> | Sem mudança: <code>1</code>")
	assert.Contains(t, text, "<b>Amazon</b>: <code>2</code> verificados, <code>0</code> altas, <code>1</code> quedas, <code>0</code> erros, <code>3</code> avisos.")
	assert.Contains(t, text, "<b>Flipkart</b>: <code>1</code> verificados, <code>1</code> altas, <code>0</code> quedas, <code>1</code> erros, <code>0</code> avisos.")
	assert.NotContains(t, text, "Ignorada")
	assert.Contains(t, text, "Enviadas: <code>1/2</code> | Falhas: <code>1</code>")
	assert.Contains(t, text, "&lt;falha&gt;")
	assert.Contains(t, text, "Tempo médio por produto: <code>25.00s</code>")
	assert.Contains(t, text, "Tempo total: <code>01:15</code>")
	assert.NotContains(t, text, "interrompida")
}

func TestSummaryTextNothingTracked(t *testing.T) {
	s := Summary{NothingTracked: true}
	assert.Equal(t, "🤷‍♂️ Nenhum produto está sendo monitorado no momento.", s.Text())

	s.PrunedRefs = 2
	assert.Contains(t, s.Text(), "Referências removidas: <code>2</code>")
}

func TestSummaryTextWithoutPlatforms(t *testing.T) {
	s := Summary{Interrupted: true}
	text := s.Text()
	assert.Contains(t, text, "Sem dados de plataforma.")
	assert.Contains(t, text, "Execução interrompida")
	assert.Contains(t, text, "Tempo médio por produto: <code>N/A</code>")
}
