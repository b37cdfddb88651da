package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rastreador-precos/internal/metrics"
	"rastreador-precos/internal/models"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultTimeout = 45 * time.Second
)

// Source define a interface para as fontes de preço de diferentes lojas
type Source interface {
	Name() string
	CanHandle(url string) bool
	Fetch(ctx context.Context, url string) (models.ProductSnapshot, error)
}

// SourceError é uma falha da fonte de preço com uma mensagem para o usuário
type SourceError struct {
	Source  string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Registry mantém um registro de todas as fontes disponíveis, na ordem de prioridade
type Registry struct {
	sources []Source
}

// NewRegistry cria um novo registro de fontes. As fontes específicas vêm
// antes da API genérica.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// Default monta o registro padrão: Mercado Livre direto e o resto pela API
func Default(apiURL string, timeout time.Duration) *Registry {
	client := newHTTPClient(timeout)
	return NewRegistry(
		NewMercadoLivreScraper(client),
		NewAPISource(apiURL, client),
	)
}

// FindScraper encontra a fonte apropriada para uma URL
func (r *Registry) FindScraper(url string) Source {
	for _, source := range r.sources {
		if source.CanHandle(url) {
			return source
		}
	}
	return nil
}

// Fetch consulta a fonte que atende a URL
func (r *Registry) Fetch(ctx context.Context, url string) (models.ProductSnapshot, error) {
	source := r.FindScraper(url)
	if source == nil {
		return models.ProductSnapshot{}, &SourceError{Source: "registry", Message: "loja não suportada"}
	}
	snapshot, err := source.Fetch(ctx, url)
	metrics.ObserveSource(source.Name(), err)
	return snapshot, err
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
