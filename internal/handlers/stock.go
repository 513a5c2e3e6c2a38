package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/yourusername/kukisti/internal/ircformat"
	"github.com/yourusername/kukisti/internal/upstream"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.=^-]{0,14}$`)

type stockChart struct {
	Chart struct {
		Result []struct {
			Meta stockMeta `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

type stockMeta struct {
	Symbol              string   `json:"symbol"`
	ShortName           string   `json:"shortName"`
	Currency            string   `json:"currency"`
	RegularMarketPrice  *float64 `json:"regularMarketPrice"`
	ChartPreviousClose  *float64 `json:"chartPreviousClose"`
	PreviousClose       *float64 `json:"previousClose"`
	RegularMarketVolume float64  `json:"regularMarketVolume"`
}

// Stock replies with the last price, the change against the previous close
// and the volume of a ticker symbol
func (s *Set) Stock(ctx context.Context, args string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(args))
	if symbol == "" {
		return "Usage: !stock <ticker> (e.g., !stock TSLA).", nil
	}
	if !tickerPattern.MatchString(symbol) {
		return fmt.Sprintf("Error: Invalid stock symbol '%s'.", symbol), nil
	}

	var data stockChart
	err := s.client.GetJSON(ctx, "stock", s.stockURL+url.PathEscape(symbol), url.Values{
		"range":    {"1d"},
		"interval": {"1d"},
	}, &data)
	var se *upstream.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Sprintf("Error: No stock data available for '%s'.", symbol), nil
	}
	if err != nil {
		return "", err
	}
	if len(data.Chart.Result) == 0 {
		return fmt.Sprintf("Error: No stock data available for '%s'.", symbol), nil
	}

	meta := data.Chart.Result[0].Meta
	prev := meta.PreviousClose
	if prev == nil {
		prev = meta.ChartPreviousClose
	}
	if meta.RegularMarketPrice == nil || prev == nil {
		return fmt.Sprintf("Error: Market price data is missing for '%s'.", symbol), nil
	}

	price := *meta.RegularMarketPrice
	change := price - *prev
	changePercent := 0.0
	if *prev != 0 {
		changePercent = change / *prev * 100
	}

	name := meta.ShortName
	if name == "" {
		name = symbol
	}
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}

	return fmt.Sprintf("%s %.2f %s, today %s. Volume %.2fk.",
		ircformat.Bolded(fmt.Sprintf("%s (%s):", name, symbol)), price, currency,
		ircformat.Change(change >= 0, fmt.Sprintf("%+.2f (%+.2f%%)", change, changePercent)),
		meta.RegularMarketVolume/1000,
	), nil
}
