package handlers

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"
)

type electricityPrice struct {
	Price     float64   `json:"price"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type electricityResponse struct {
	Prices []electricityPrice `json:"prices"`
}

var helsinki = mustLocation("Europe/Helsinki")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// now is replaced in tests
var now = time.Now

// Electricity replies with the spot price (c/kWh incl. VAT) for the current
// period and the next one when it is published
func (s *Set) Electricity(ctx context.Context, _ string) (string, error) {
	var data electricityResponse
	if err := s.client.GetJSON(ctx, "electricity", s.electricityURL, nil, &data); err != nil {
		return "", err
	}

	at := now()
	var current, next *electricityPrice
	for i := range data.Prices {
		p := &data.Prices[i]
		if !at.Before(p.StartDate) && at.Before(p.EndDate) {
			current = p
		}
	}
	if current == nil {
		return "No electricity price published for the current hour.", nil
	}
	for i := range data.Prices {
		if data.Prices[i].StartDate.Equal(current.EndDate) {
			next = &data.Prices[i]
		}
	}

	reply := fmt.Sprintf("Electricity price in Finland %s: %.2f c/kWh",
		period(current), current.Price)
	if next != nil {
		reply += fmt.Sprintf(", next %s: %.2f c/kWh", period(next), next.Price)
	}
	return reply + ".", nil
}

func period(p *electricityPrice) string {
	return p.StartDate.In(helsinki).Format("15:04") + "-" + p.EndDate.In(helsinki).Format("15:04")
}
