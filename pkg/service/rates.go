package service

import (
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/pkg/cache"
)

const coingeckoURL = "https://api.coingecko.com/api/v3/simple/price"

// RateService оценивает фиатную сумму заявки в криптовалюте эскроу.
type RateService struct {
	client *resty.Client
	apiKey string
}

func NewRateService(apiKey string) *RateService {
	return &RateService{client: resty.New(), apiKey: apiKey}
}

// Quote возвращает, сколько crypto стоит fiatAmount. Курс берётся из кэша,
// при промахе — запрос к CoinGecko.
func (s *RateService) Quote(fiatAmount decimal.Decimal, fiatCurrency, crypto string) (decimal.Decimal, error) {
	fiat := strings.ToLower(fiatCurrency)
	id := currencyID(crypto)
	key := id + "_" + fiat

	if rate, found := cache.GetCachedRate(key); found {
		return fiatAmount.Div(decimal.NewFromFloat(rate)).Round(8), nil
	}

	resp, err := s.client.R().
		SetHeader("x-cg-demo-api-key", s.apiKey).
		SetHeader("Accept", "application/json").
		SetQueryParam("ids", id).
		SetQueryParam("vs_currencies", fiat).
		SetResult(map[string]map[string]float64{}).
		Get(coingeckoURL)
	if err != nil || resp.IsError() {
		logrus.Errorf("Не удалось получить курс %s/%s: %v", crypto, fiat, err)
		return decimal.Zero, errors.New("exchange rate unavailable")
	}

	data := *resp.Result().(*map[string]map[string]float64)
	rate := data[id][fiat]
	if rate == 0 {
		return decimal.Zero, errors.New("exchange rate unavailable")
	}
	cache.SetCachedRate(key, rate)

	return fiatAmount.Div(decimal.NewFromFloat(rate)).Round(8), nil
}

func currencyID(symbol string) string {
	switch strings.ToLower(symbol) {
	case "usdt":
		return "tether"
	case "btc":
		return "bitcoin"
	case "eth":
		return "ethereum"
	default:
		return strings.ToLower(symbol)
	}
}
