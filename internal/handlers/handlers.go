// Package handlers contains the chat commands the bot ships with. Each
// command is a commands.Handler; Entries wires them into registry entries.
package handlers

import (
	"context"

	"github.com/yourusername/kukisti/internal/commands"
	"github.com/yourusername/kukisti/internal/config"
	"github.com/yourusername/kukisti/internal/upstream"
)

// Set holds the shared dependencies of the built-in commands
type Set struct {
	client *upstream.Client
	apis   config.APIsConfig

	electricityURL string
	weatherURL     string
	cryptoURL      string
	timeURL        string
	stockURL       string
}

// NewSet creates the built-in command set
func NewSet(apis config.APIsConfig, client *upstream.Client) *Set {
	s := &Set{
		client:         client,
		apis:           apis,
		electricityURL: apis.ElectricityURL,
		weatherURL:     "https://api.weatherapi.com/v1/current.json",
		cryptoURL:      "https://api.coingecko.com/api/v3/simple/price",
		timeURL:        "https://api.ipgeolocation.io/timezone",
		stockURL:       "https://query1.finance.yahoo.com/v8/finance/chart/",
	}
	if s.electricityURL == "" {
		s.electricityURL = config.DefaultConfig().APIs.ElectricityURL
	}
	return s
}

// Entries returns registry entries for every built-in command. Aliases are
// prefix + name. aliases is called by the help command at run time so it
// can list the final registry.
func (s *Set) Entries(prefix string, aliases func() []string) []commands.Entry {
	alias := func(names ...string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = prefix + n
		}
		return out
	}

	return []commands.Entry{
		{
			Name:    "sahko",
			Aliases: alias("sahko", "sähkö"),
			Help:    "current electricity spot price in Finland",
			Handler: commands.HandlerFunc(s.Electricity),
		},
		{
			Name:      "weather",
			Aliases:   alias("weather", "w"),
			AllowArgs: true,
			Help:      "current weather: <city>[,<country>]",
			Handler:   commands.HandlerFunc(s.Weather),
		},
		{
			Name:      "crypto",
			Aliases:   alias("crypto", "c"),
			AllowArgs: true,
			Help:      "cryptocurrency price: <coin id>",
			Handler:   commands.HandlerFunc(s.Crypto),
		},
		{
			Name:      "time",
			Aliases:   alias("time", "t"),
			AllowArgs: true,
			Help:      "local time: <city>",
			Handler:   commands.HandlerFunc(s.Time),
		},
		{
			Name:      "stock",
			Aliases:   alias("stock"),
			AllowArgs: true,
			Help:      "stock price: <ticker>",
			Handler:   commands.HandlerFunc(s.Stock),
		},
		{
			Name:    "help",
			Aliases: alias("help"),
			Help:    "list commands",
			Handler: Help(aliases),
		},
	}
}

// Help lists the registered aliases
func Help(aliases func() []string) commands.Handler {
	return commands.HandlerFunc(func(ctx context.Context, args string) (string, error) {
		list := aliases()
		if len(list) == 0 {
			return "", nil
		}
		return "Commands: " + joinLimited(list, ", ", 350), nil
	})
}

// joinLimited joins items until the next one would pass max bytes
func joinLimited(items []string, sep string, max int) string {
	out := ""
	for i, it := range items {
		next := it
		if i > 0 {
			next = sep + it
		}
		if len(out)+len(next) > max {
			return out + sep + "..."
		}
		out += next
	}
	return out
}
