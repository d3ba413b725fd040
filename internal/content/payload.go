package content

import "time"

// Known content types. The scope narrows a type to a concrete key: lat/lon
// for weather, the symbol list for stocks, empty for the singleton feeds.
const (
	TypeNews    = "news"
	TypeSports  = "sports"
	TypeWeather = "weather"
	TypeStocks  = "stocks"
	TypeQuotes  = "quotes"
)

// Headline is one normalized feed item.
type Headline struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// WeatherReport is a normalized forecast for one location.
type WeatherReport struct {
	City         string  `json:"city,omitempty"`
	TemperatureC float64 `json:"temperature_c"`
	HighC        float64 `json:"high_c"`
	LowC         float64 `json:"low_c"`
	Condition    string  `json:"condition"`
	PrecipChance int     `json:"precip_chance"`
	WindSpeedKPH float64 `json:"wind_speed_kph"`
}

// StockQuote is a normalized price snapshot for one symbol.
type StockQuote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Quote is an inspirational quote of the day.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// Payload is the normalized cache value. Exactly one of the value fields is
// populated, matching ContentType.
type Payload struct {
	ContentType string         `json:"content_type"`
	Headlines   []Headline     `json:"headlines,omitempty"`
	Weather     *WeatherReport `json:"weather,omitempty"`
	Stocks      []StockQuote   `json:"stocks,omitempty"`
	Quote       *Quote         `json:"quote,omitempty"`
}

// Empty reports whether the payload carries no usable content.
func (p Payload) Empty() bool {
	return len(p.Headlines) == 0 && p.Weather == nil && len(p.Stocks) == 0 && p.Quote == nil
}
