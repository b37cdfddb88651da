package monitor

import (
	"context"

	"rastreador-precos/internal/models"
)

// ProductStore é o acesso aos produtos que o monitor precisa
type ProductStore interface {
	GetProducts(ctx context.Context, ids []string) (map[string]models.Product, error)
	CountProduct(ctx context.Context, id string) (int, error)
	UpdateProduct(ctx context.Context, id string, upd models.ProductUpdate) error
}

// UserStore é o acesso aos assinantes que o monitor precisa
type UserStore interface {
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	RemoveTrackedIDs(ctx context.Context, userID string, productIDs []string) error
}

// Source busca os dados atuais de um produto pela URL
type Source interface {
	Fetch(ctx context.Context, url string) (models.ProductSnapshot, error)
}

// Notifier entrega uma mensagem a um assinante. Falhas são por destinatário.
type Notifier interface {
	Send(ctx context.Context, recipientID string, n models.Notification) error
}

// ReportSink arquiva o resumo da execução e o log detalhado opcional
type ReportSink interface {
	Publish(ctx context.Context, summary string, detail []byte) error
}

// Progress recebe mensagens de andamento de uma execução interativa
type Progress interface {
	Update(ctx context.Context, text string)
}
