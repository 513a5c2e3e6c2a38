package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type timeLocation struct {
	City           string `json:"city"`
	LocationString string `json:"location_string"`
	CityName       string `json:"city_name"`
	CountryName    string `json:"country_name"`
	Country        string `json:"country"`
}

type timeResponse struct {
	Date        string        `json:"date"`
	Time24      string        `json:"time_24"`
	CountryName string        `json:"country_name"`
	Location    *timeLocation `json:"location"`
	Geo         *timeLocation `json:"geo"`
	Error       string        `json:"error"`
	Message     string        `json:"message"`
}

// Time replies with the local date and time for a city
func (s *Set) Time(ctx context.Context, args string) (string, error) {
	city := strings.TrimSpace(args)
	if city == "" {
		return "Error: Please provide a city name, e.g. !time austin", nil
	}
	if s.apis.TimeAPIKey == "" {
		return "Error: TIME_API_KEY is not set.", nil
	}

	var data timeResponse
	err := s.client.GetJSON(ctx, "time", s.timeURL, url.Values{
		"apiKey":   {s.apis.TimeAPIKey},
		"location": {city},
	}, &data)
	if err != nil {
		return "", err
	}

	if data.Time24 == "" {
		if msg := firstNonEmpty(data.Error, data.Message); msg != "" {
			return "Error: " + msg, nil
		}
		return "", errors.New("time: unexpected response")
	}

	return fmt.Sprintf("Local time in %s: %s %s", timeLocationName(&data, city), shortDate(data.Date), fullClock(data.Time24)), nil
}

func timeLocationName(data *timeResponse, query string) string {
	loc := data.Location
	if loc == nil {
		loc = data.Geo
	}
	if loc == nil {
		loc = &timeLocation{}
	}

	city := strings.TrimSpace(firstNonEmpty(loc.City, loc.LocationString, loc.CityName, query))
	country := firstNonEmpty(loc.CountryName, loc.Country, data.CountryName)

	// "Austin, Texas, United States" already ends with the country
	if country != "" && strings.HasSuffix(strings.ToLower(city), ", "+strings.ToLower(country)) {
		city = strings.TrimSpace(city[:len(city)-len(", "+country)])
	}
	city = capitalize(city)

	if country == "" {
		return city
	}
	return city + ", " + country
}

// shortDate turns 2026-02-01 into 01/02/26
func shortDate(date string) string {
	parts := strings.Split(date, "-")
	if len(date) != 10 || len(parts) != 3 {
		return date
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0][2:]
}

func fullClock(clock string) string {
	if len(clock) == 5 {
		return clock + ":00"
	}
	return clock
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
