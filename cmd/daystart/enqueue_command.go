package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"daystart/internal/config"
	"daystart/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		identity  string
		purchased bool
		localDate string
		schedule  string
		timezone  string
		name      string
		voice     string
		length    int
		welcome   bool

		withWeather bool
		withNews    bool
		withSports  bool
		withStocks  bool
		withQuotes  bool
		symbols     []string
		city        string
		latitude    float64
		longitude   float64
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a briefing job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				scheduledAt := time.Now().UTC()
				if trimmed := strings.TrimSpace(schedule); trimmed != "" {
					parsed, err := time.Parse(time.RFC3339, trimmed)
					if err != nil {
						return fmt.Errorf("invalid --at value %q (want RFC3339)", trimmed)
					}
					scheduledAt = parsed
				}
				if strings.TrimSpace(localDate) == "" {
					localDate = scheduledAt.Format("2006-01-02")
				}

				tier := queue.TierAnonymous
				if purchased {
					tier = queue.TierPurchased
				}

				req := queue.NewJobRequest{
					IdentityToken:  identity,
					Tier:           tier,
					LocalDate:      localDate,
					ScheduledAt:    scheduledAt,
					Timezone:       timezone,
					PreferredName:  name,
					Voice:          voice,
					LengthMinutes:  length,
					Welcome:        welcome,
					IncludeWeather: withWeather,
					IncludeNews:    withNews,
					IncludeSports:  withSports,
					IncludeStocks:  withStocks,
					IncludeQuotes:  withQuotes,
					StockSymbols:   symbols,
				}
				if withWeather {
					req.Location = &queue.Location{City: city, Latitude: latitude, Longitude: longitude}
				}

				job, err := store.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued briefing %s for %s (%d min, voice %s)\n",
					job.PublicID, job.LocalDate, job.LengthMinutes, job.Voice)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "Opaque identity token (required)")
	cmd.Flags().BoolVar(&purchased, "purchased", false, "Mark the identity as purchased tier")
	cmd.Flags().StringVar(&localDate, "date", "", "Local date YYYY-MM-DD (defaults to the scheduled date)")
	cmd.Flags().StringVar(&schedule, "at", "", "Scheduled time, RFC3339 (defaults to now)")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone name")
	cmd.Flags().StringVar(&name, "name", "", "Preferred name for the greeting")
	cmd.Flags().StringVar(&voice, "voice", "morning_calm", "Voice option")
	cmd.Flags().IntVar(&length, "length", 3, "Briefing length in minutes")
	cmd.Flags().BoolVar(&welcome, "welcome", false, "Mark as a first-run welcome briefing")
	cmd.Flags().BoolVar(&withWeather, "weather", false, "Include the weather section")
	cmd.Flags().BoolVar(&withNews, "news", true, "Include the news section")
	cmd.Flags().BoolVar(&withSports, "sports", false, "Include the sports section")
	cmd.Flags().BoolVar(&withStocks, "stocks", false, "Include the stocks section")
	cmd.Flags().BoolVar(&withQuotes, "quotes", false, "Include the quote section")
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Stock symbols (with --stocks)")
	cmd.Flags().StringVar(&city, "city", "", "City name (with --weather)")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "Latitude (with --weather)")
	cmd.Flags().Float64Var(&longitude, "lon", 0, "Longitude (with --weather)")
	_ = cmd.MarkFlagRequired("identity")

	return cmd
}
