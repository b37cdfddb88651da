package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rastreador-precos/internal/models"
)

var (
	numberPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	brlCleanup      = regexp.MustCompile(`[^0-9.]`)
	discountPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	offersPrice     = regexp.MustCompile(`"offers"[^}]*"price"\s*:\s*"?([0-9.]+)"?`)
	anyPrice        = regexp.MustCompile(`"price"\s*:\s*"?([0-9.]+)"?`)
	listPrice       = regexp.MustCompile(`"(listPrice|highPrice|originalPrice)"\s*:\s*"?([0-9.]+)"?`)
	ldName          = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
)

// MercadoLivreScraper implementa a fonte para o Mercado Livre, lendo a página do produto
type MercadoLivreScraper struct {
	client *http.Client
}

// NewMercadoLivreScraper cria uma nova instância do scraper do Mercado Livre
func NewMercadoLivreScraper(client *http.Client) *MercadoLivreScraper {
	if client == nil {
		client = newHTTPClient(0)
	}
	return &MercadoLivreScraper{client: client}
}

func (m *MercadoLivreScraper) Name() string { return "mercadolivre" }

// CanHandle verifica se o scraper pode lidar com a URL fornecida
func (m *MercadoLivreScraper) CanHandle(url string) bool {
	return strings.Contains(url, "mercadolivre.com.br")
}

// Fetch baixa a página uma única vez e extrai nome, preços, desconto e imagens
func (m *MercadoLivreScraper) Fetch(ctx context.Context, url string) (models.ProductSnapshot, error) {
	doc, err := m.document(ctx, url)
	if err != nil {
		return models.ProductSnapshot{}, err
	}

	current, ok := currentPrice(doc)
	if !ok {
		return models.ProductSnapshot{}, &SourceError{Source: m.Name(), Message: "preço não encontrado na página"}
	}

	snap := models.ProductSnapshot{
		Name:         productName(doc),
		CurrentPrice: current,
		Discount:     discount(doc),
		Currency:     "R$",
		Images:       images(doc),
		Source:       m.Name(),
	}
	if original, ok := originalPrice(doc); ok && original > current {
		snap.OriginalPrice = original
	}
	return snap, nil
}

func (m *MercadoLivreScraper) document(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cleanURL(url), nil)
	if err != nil {
		return nil, &SourceError{Source: m.Name(), Message: "link inválido", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: m.Name(), Message: "falha ao acessar a página", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: m.Name(), Message: fmt.Sprintf("status code: %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &SourceError{Source: m.Name(), Message: "página inválida", Err: err}
	}
	return doc, nil
}

// currentPrice prioriza o preço promocional; sem ele, fica com o menor preço
// exibido e, por último, com os dados estruturados da página
func currentPrice(doc *goquery.Document) (float64, bool) {
	promotionalSelectors := []string{
		".ui-pdp-price__second-line .andes-money-amount__fraction",
		".ui-pdp-price--size-large .andes-money-amount__fraction",
	}
	if text := firstText(doc, promotionalSelectors...); text != "" {
		if v, ok := parseBRL(text); ok {
			return v, true
		}
	}

	var (
		best  float64
		found bool
	)
	doc.Find("[data-testid='price'] .andes-money-amount__fraction, .ui-pdp-price__first-line .andes-money-amount__fraction, .andes-money-amount__fraction, .price-tag-fraction").
		Each(func(_ int, s *goquery.Selection) {
			if v, ok := parseBRL(s.Text()); ok && (!found || v < best) {
				best, found = v, true
			}
		})
	if found {
		return best, true
	}

	if content, ok := doc.Find("meta[property='product:price:amount']").First().Attr("content"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(content), 64); err == nil && v > 0 {
			return v, true
		}
	}

	var ld float64
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		match := offersPrice.FindStringSubmatch(text)
		if match == nil {
			match = anyPrice.FindStringSubmatch(text)
		}
		if match == nil {
			return true
		}
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil || v <= 0 {
			return true
		}
		ld = v
		return false
	})
	return ld, ld > 0
}

// originalPrice busca o preço riscado (antes do desconto)
func originalPrice(doc *goquery.Document) (float64, bool) {
	text := firstText(doc,
		".andes-money-amount--previous-price .andes-money-amount__fraction",
		".ui-pdp-price__original .andes-money-amount__fraction",
	)
	if text != "" {
		return parseBRL(text)
	}

	var original float64
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		match := listPrice.FindStringSubmatch(s.Text())
		if match == nil {
			return true
		}
		if v, err := strconv.ParseFloat(match[2], 64); err == nil {
			original = v
		}
		return original == 0
	})
	return original, original > 0
}

// discount extrai o percentual de desconto (ex: "17% OFF" -> 17)
func discount(doc *goquery.Document) float64 {
	var text string
	for _, selector := range []string{
		".ui-pdp-price__second-line .andes-money-amount__discount",
		".andes-money-amount__discount",
		".ui-pdp-price__discount",
	} {
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := strings.TrimSpace(s.Text()); strings.Contains(t, "%") {
				text = t
				return false
			}
			return true
		})
		if text != "" {
			break
		}
	}

	match := discountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

func productName(doc *goquery.Document) string {
	if name := firstText(doc, "h1.ui-pdp-title", "h1[data-testid='title']", ".ui-pdp-title", "h1"); name != "" {
		return name
	}

	var name string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match := ldName.FindStringSubmatch(s.Text()); match != nil {
			name = match[1]
			return false
		}
		return true
	})
	if name == "" {
		name = "Produto sem nome"
	}
	return name
}

func images(doc *goquery.Document) []string {
	var out []string
	seen := map[string]struct{}{}
	doc.Find("meta[property='og:image'], figure.ui-pdp-gallery__figure img").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("content", "")
		if src == "" {
			src = s.AttrOr("data-zoom", s.AttrOr("src", ""))
		}
		src = strings.TrimSpace(src)
		if !strings.HasPrefix(src, "http") {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	})
	return out
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// parseBRL converte "1.299,90" em 1299.90
func parseBRL(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = brlCleanup.ReplaceAllString(cleaned, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func cleanURL(url string) string {
	before, _, _ := strings.Cut(url, "#")
	return before
}
