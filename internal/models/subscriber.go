package models

import (
	"strings"
	"time"
)

// Subscriber é um usuário do bot com a lista de produtos que acompanha
type Subscriber struct {
	ID         string
	TrackedIDs []string
}

// UniqueTrackedIDs devolve os ids acompanhados sem repetições, na ordem original
func (s Subscriber) UniqueTrackedIDs() []string {
	seen := make(map[string]struct{}, len(s.TrackedIDs))
	ids := make([]string, 0, len(s.TrackedIDs))
	for _, id := range s.TrackedIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Notification é uma mensagem para um assinante, com botão opcional de link
type Notification struct {
	Text           string
	ButtonText     string
	ButtonURL      string
	DisablePreview bool
}

// Candidate é um produto resolvido a partir de um link, aguardando o usuário
// confirmar o monitoramento
type Candidate struct {
	OwnerID   string
	URL       string
	Snapshot  ProductSnapshot
	CreatedAt time.Time
}

// NormalizeSource padroniza a tag da plataforma (minúsculas, "unknown" se vazia)
func NormalizeSource(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return "unknown"
	}
	return source
}
