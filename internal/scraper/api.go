package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rastreador-precos/internal/models"
)

const (
	// DefaultAPIURL é o endpoint público usado quando nada é configurado
	DefaultAPIURL   = "https://e-com-price-tracker-lemon.vercel.app/buyhatke"
	defaultCurrency = "₹"
	maxBodySize     = 4 << 20
)

// APISource consulta o serviço de rastreamento de preços, que atende várias lojas
type APISource struct {
	endpoint string
	client   *http.Client
}

// NewAPISource cria a fonte baseada na API
func NewAPISource(endpoint string, client *http.Client) *APISource {
	if endpoint == "" {
		endpoint = DefaultAPIURL
	}
	if client == nil {
		client = newHTTPClient(0)
	}
	return &APISource{endpoint: endpoint, client: client}
}

func (a *APISource) Name() string { return "api" }

// CanHandle aceita qualquer link http(s); a API decide se a loja é suportada
func (a *APISource) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

type apiResponse struct {
	Error          any           `json:"error"`
	Detail         any           `json:"detail"`
	CurrencySymbol string        `json:"currencySymbol"`
	DealsData      *apiDealsData `json:"dealsData"`
}

type apiDealsData struct {
	ProductData map[string]any `json:"product_data"`
}

// Fetch busca os dados do produto na API
func (a *APISource) Fetch(ctx context.Context, productURL string) (models.ProductSnapshot, error) {
	endpoint, err := url.Parse(a.endpoint)
	if err != nil {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "endpoint inválido", Err: err}
	}
	q := endpoint.Query()
	q.Set("product_url", productURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "requisição inválida", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "não foi possível conectar ao serviço de preços", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "falha ao ler resposta", Err: err}
	}

	var data apiResponse
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// a API costuma explicar o erro no corpo mesmo com status de falha
		if decodeErr == nil {
			if msg := apiErrorMessage(data); msg != "" {
				return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: msg}
			}
		}
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if decodeErr != nil {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "resposta inválida", Err: decodeErr}
	}
	if msg := apiErrorMessage(data); msg != "" {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: msg}
	}
	if data.DealsData == nil || len(data.DealsData.ProductData) == 0 {
		return models.ProductSnapshot{}, &SourceError{Source: a.Name(), Message: "dados do produto ausentes na resposta"}
	}

	return snapshotFromAPI(data.DealsData.ProductData, data.CurrencySymbol), nil
}

func apiErrorMessage(data apiResponse) string {
	for _, v := range []any{data.Error, data.Detail} {
		if v == nil {
			continue
		}
		if s := stringValue(v); s != "" {
			return s
		}
		return "erro da API"
	}
	return ""
}

func snapshotFromAPI(product map[string]any, currency string) models.ProductSnapshot {
	if currency == "" {
		currency = defaultCurrency
	}
	source := stringValue(product["site_name"])
	if source == "" {
		source = "unknown"
	}

	snap := models.ProductSnapshot{
		Name:          stringValue(product["name"]),
		CurrentPrice:  product["cur_price"],
		OriginalPrice: product["orgi_price"],
		Discount:      floatValue(product["discount"]),
		Rating:        floatValue(product["rating"]),
		ReviewsCount:  int64(floatValue(product["ratingCount"])),
		Currency:      currency,
		Images:        stringList(product["thumbnailImages"]),
		Source:        strings.ToLower(source),
	}

	for _, key := range []string{"brand", "category", "pid"} {
		if v := stringValue(product[key]); v != "" {
			if snap.Metadata == nil {
				snap.Metadata = map[string]string{}
			}
			snap.Metadata[key] = v
		}
	}
	return snap
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// floatValue aceita número ou texto ("4.3", "1,234 ratings")
func floatValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		cleaned := strings.ReplaceAll(t, ",", "")
		cleaned = numberPattern.FindString(cleaned)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
