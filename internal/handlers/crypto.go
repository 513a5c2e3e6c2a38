package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yourusername/kukisti/internal/ircformat"
)

const cryptoCurrency = "usd"

// Crypto replies with the USD price, 24h change and volume of a CoinGecko
// coin id
func (s *Set) Crypto(ctx context.Context, args string) (string, error) {
	coin := strings.ToLower(strings.TrimSpace(args))
	if coin == "" {
		return "Please provide a cryptocurrency name (e.g., !crypto bitcoin).", nil
	}

	var data map[string]map[string]float64
	err := s.client.GetJSON(ctx, "crypto", s.cryptoURL, url.Values{
		"ids":                 {coin},
		"vs_currencies":       {cryptoCurrency},
		"include_24hr_change": {"true"},
		"include_24hr_vol":    {"true"},
	}, &data)
	if err != nil {
		return "", err
	}

	quote, ok := data[coin]
	if !ok {
		return fmt.Sprintf("Could not retrieve data for cryptocurrency '%s'.", coin), nil
	}

	price := quote[cryptoCurrency]
	changePercent := quote[cryptoCurrency+"_24h_change"]
	change := price * changePercent / 100
	volume := quote[cryptoCurrency+"_24h_vol"] / 1e9
	cur := strings.ToUpper(cryptoCurrency)

	return fmt.Sprintf("%s %.2f %s, today %s. Volume %.2fB.",
		ircformat.Bolded(capitalize(coin)+" "+cur+":"), price, cur,
		ircformat.Change(change >= 0, fmt.Sprintf("%+.2f (%+.2f%%)", change, changePercent)),
		volume,
	), nil
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
