package models

import "time"

// PricePair representa um preço no formato canônico: texto para exibição e
// valor inteiro para comparação
type PricePair struct {
	Display string `json:"display"`
	Amount  int64  `json:"amount"`
}

// Product representa um produto sendo monitorado
type Product struct {
	ID            string
	UserID        string // Quem começou a monitorar (informativo)
	URL           string
	Source        string // Loja/plataforma de origem (ex: amazon, flipkart)
	Currency      string
	Name          string
	CurrentPrice  PricePair
	OriginalPrice PricePair // Preço original (antes do desconto)
	Discount      float64   // Percentual de desconto informado pela loja (0-100)
	Rating        float64
	ReviewsCount  int64
	Images        []string
	Metadata      map[string]string
	LastChecked   time.Time
	CreatedAt     time.Time
}

// PlatformTag retorna a tag da plataforma normalizada para estatísticas
func (p Product) PlatformTag() string {
	return NormalizeSource(p.Source)
}

// ProductUpdate contém os campos que o monitor grava quando o preço muda
type ProductUpdate struct {
	Name          string
	Currency      string
	CurrentPrice  PricePair
	OriginalPrice PricePair
	Discount      float64
	Rating        float64
	ReviewsCount  int64
	Images        []string
	CheckedAt     time.Time
}

// ProductSnapshot é o retrato de um produto devolvido por uma fonte de preços.
// Os preços chegam crus (número ou texto) e são normalizados por quem consome.
type ProductSnapshot struct {
	Name          string
	CurrentPrice  any
	OriginalPrice any
	Discount      float64
	Rating        float64
	ReviewsCount  int64
	Currency      string
	Images        []string
	Source        string
	Metadata      map[string]string
}

// FirstImage retorna a primeira imagem disponível, se houver
func (s ProductSnapshot) FirstImage() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[0]
}
