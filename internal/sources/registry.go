package sources

import (
	"log/slog"

	"daystart/internal/config"
	"daystart/internal/content"
)

// RegisterAll wires every configured adapter into the cache manager.
func RegisterAll(manager *content.Manager, cfg config.Sources, budget *content.Budget, logger *slog.Logger) {
	manager.Register(NewNewsAdapter(cfg.News, budget, logger))
	manager.Register(NewSportsAdapter(cfg.Sports, budget, logger))
	manager.Register(NewWeatherAdapter(cfg.Weather, budget))
	manager.Register(NewStocksAdapter(cfg.Stocks, budget))
	manager.Register(NewQuotesAdapter(cfg.Quotes, budget))
}
