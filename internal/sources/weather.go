package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/services"
)

// WeatherAdapter fetches a forecast from an open-meteo compatible API. The
// scope carries rounded coordinates plus an optional city label.
type WeatherAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	budget  requestBudget
}

// NewWeatherAdapter builds the forecast adapter from configuration.
func NewWeatherAdapter(cfg config.Source, budget *content.Budget) *WeatherAdapter {
	return &WeatherAdapter{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.TimeoutSeconds),
		budget:  requestBudget{budget: budget, provider: content.TypeWeather, limit: cfg.DailyBudget},
	}
}

func (a *WeatherAdapter) ContentType() string { return content.TypeWeather }

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		PrecipChance   []int     `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Fetch requests the current conditions and today's range for the scoped
// location.
func (a *WeatherAdapter) Fetch(ctx context.Context, scope string) (content.Payload, error) {
	latitude, longitude, city, err := parseWeatherScope(scope)
	if err != nil {
		return content.Payload{}, services.Wrap(services.ErrPermanent, "sources", content.TypeWeather, "parse scope", err)
	}

	if err := a.budget.take(ctx); err != nil {
		return content.Payload{}, err
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(longitude, 'f', 4, 64))
	query.Set("current", "temperature_2m,weather_code,wind_speed_10m")
	query.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	query.Set("forecast_days", "1")
	query.Set("timezone", "UTC")
	if a.apiKey != "" {
		query.Set("apikey", a.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/forecast?"+query.Encode(), nil)
	if err != nil {
		return content.Payload{}, fmt.Errorf("build forecast request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return content.Payload{}, services.Wrap(services.ErrTransient, "sources", content.TypeWeather, "fetch forecast", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Payload{}, statusError(content.TypeWeather, resp.StatusCode)
	}

	var decoded forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return content.Payload{}, fmt.Errorf("decode forecast: %w", err)
	}

	report := &content.WeatherReport{
		City:         city,
		TemperatureC: decoded.Current.Temperature,
		Condition:    conditionForCode(decoded.Current.WeatherCode),
		WindSpeedKPH: decoded.Current.WindSpeed,
	}
	if len(decoded.Daily.TemperatureMax) > 0 {
		report.HighC = decoded.Daily.TemperatureMax[0]
	}
	if len(decoded.Daily.TemperatureMin) > 0 {
		report.LowC = decoded.Daily.TemperatureMin[0]
	}
	if len(decoded.Daily.PrecipChance) > 0 {
		report.PrecipChance = decoded.Daily.PrecipChance[0]
	}
	return content.Payload{Weather: report}, nil
}

// conditionForCode maps WMO weather interpretation codes to narration text.
func conditionForCode(code int) string {
	switch {
	case code == 0:
		return "clear skies"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code <= 48:
		return "foggy"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorms"
	}
}
