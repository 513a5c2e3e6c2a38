package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type weatherResponse struct {
	Location *struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current *struct {
		TempC      float64 `json:"temp_c"`
		TempF      float64 `json:"temp_f"`
		FeelsLikeC float64 `json:"feelslike_c"`
		FeelsLikeF float64 `json:"feelslike_f"`
		WindKph    float64 `json:"wind_kph"`
		WindDir    string  `json:"wind_dir"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Weather replies with current conditions for "<city>" or "<city>,<country>"
func (s *Set) Weather(ctx context.Context, args string) (string, error) {
	city, country, _ := strings.Cut(args, ",")
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	if city == "" {
		return "Usage: !weather <city> or !weather <city>,<country>", nil
	}
	if s.apis.WeatherAPIKey == "" {
		return "Error: WEATHER_API_KEY is not set.", nil
	}

	q := city
	if country != "" {
		q = city + "," + country
	}

	var data weatherResponse
	err := s.client.GetJSON(ctx, "weather", s.weatherURL, url.Values{
		"key": {s.apis.WeatherAPIKey},
		"q":   {q},
		"aqi": {"no"},
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Location == nil || data.Current == nil {
		return "", fmt.Errorf("weather: unexpected response")
	}

	c := data.Current
	return fmt.Sprintf("Current weather in %s, %s: %s, %s°C (%s°F) (feels like %s°C/%s°F). Wind: %s %.1f m/s.",
		data.Location.Name, data.Location.Country, c.Condition.Text,
		num(c.TempC), num(c.TempF), num(c.FeelsLikeC), num(c.FeelsLikeF),
		c.WindDir, c.WindKph/3.6,
	), nil
}

// num formats like the API returns it: 3.0 becomes "3", 3.25 stays "3.25"
func num(f float64) string {
	return fmt.Sprintf("%g", f)
}
