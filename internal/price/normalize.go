package price

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rastreador-precos/internal/models"
)

const notAvailable = "N/A"

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// Normalize converte um preço heterogêneo (número ou texto com símbolo de
// moeda e separadores de milhar) no par canônico. Nunca falha: entradas
// inválidas viram {"N/A", 0}, preservando o texto original quando existir.
func Normalize(value any) models.PricePair {
	switch v := value.(type) {
	case nil:
		return models.PricePair{Display: notAvailable}
	case string:
		return fromText(v)
	case json.Number:
		return fromText(v.String())
	case float64:
		return fromFloat(v, strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		return fromFloat(float64(v), strconv.FormatFloat(float64(v), 'f', -1, 32))
	case int:
		return models.PricePair{Display: strconv.Itoa(v), Amount: int64(v)}
	case int32:
		return models.PricePair{Display: strconv.FormatInt(int64(v), 10), Amount: int64(v)}
	case int64:
		return models.PricePair{Display: strconv.FormatInt(v, 10), Amount: v}
	case uint:
		return fromFloat(float64(v), strconv.FormatUint(uint64(v), 10))
	case uint32:
		return models.PricePair{Display: strconv.FormatUint(uint64(v), 10), Amount: int64(v)}
	case uint64:
		return fromFloat(float64(v), strconv.FormatUint(v, 10))
	default:
		return models.PricePair{Display: notAvailable}
	}
}

func fromFloat(f float64, display string) models.PricePair {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return models.PricePair{Display: notAvailable}
	}
	return models.PricePair{Display: display, Amount: int64(f)}
}

func fromText(text string) models.PricePair {
	original := strings.TrimSpace(text)
	if original == "" {
		return models.PricePair{Display: notAvailable}
	}

	cleaned := nonNumeric.ReplaceAllString(original, "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return models.PricePair{Display: original}
	}
	pair := fromFloat(f, original)
	pair.Display = original
	return pair
}

// PercentChange calcula a variação percentual entre o preço antigo e o novo.
// Sem preço anterior (old == 0) a variação é 0.
func PercentChange(oldAmount, newAmount int64) float64 {
	if oldAmount == 0 {
		return 0
	}
	return float64(newAmount-oldAmount) / float64(oldAmount) * 100
}

// FormatPercent formata a variação com sinal e duas casas (ex: +20.00%)
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

// FormatDuration formata uma duração como hh:mm:ss, mm:ss ou Ns
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	seconds %= 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%02d:%02d", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
