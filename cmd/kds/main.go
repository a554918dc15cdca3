package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColCarroll/kindle-display-server/internal/app"
	"github.com/ColCarroll/kindle-display-server/internal/config"
	"github.com/ColCarroll/kindle-display-server/internal/db"
	"github.com/ColCarroll/kindle-display-server/internal/events"
	"github.com/ColCarroll/kindle-display-server/internal/store"
	"github.com/ColCarroll/kindle-display-server/internal/summary"
)

var rootCmd = &cobra.Command{
	Use:   "kds",
	Short: "Kindle display server CLI",
	Long: `kds assembles the data behind a personal e-ink dashboard:
running mileage and milestone projections from Strava, hourly forecasts
from weather.gov, all cached in a local SQLite workspace so the display
keeps working when the network does not.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("KDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(activitiesCmd())
	rootCmd.AddCommand(weatherCmd())
	rootCmd.AddCommand(locationsCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(logCmd())
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the sync log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent sync operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				entries, err := a.Events.Tail(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Kind", "Detail"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.Kind, e.Detail})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "entries to show")
	log.AddCommand(tail)
	return log
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter dashboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the running summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				s := a.Summary.GetRunningSummary(cmd.Context(), !noCache)
				if s == nil {
					fmt.Println("Strava data unavailable")
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				renderSummary(s)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass cached stats and refetch the full year")
	return cmd
}

func renderSummary(s *summary.RunningSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRow(table.Row{"This week", fmt.Sprintf("%.1f mi", s.WeeklyDistanceMi)})
	tw.AppendRow(table.Row{"This year", fmt.Sprintf("%.1f mi / %.0f ft", s.YearlyDistanceMi, s.YearlyElevationFt)})
	tw.AppendRow(table.Row{"Projected", fmt.Sprintf("%.0f mi", s.ProjectedYearlyMi)})
	tw.AppendRow(table.Row{"Milestone", fmt.Sprintf("%.0f-%.0f mi (%.1f%%)", s.MilestoneLow, s.MilestoneHigh, s.ProgressPercent)})
	tw.AppendRow(table.Row{"Needed/day", fmt.Sprintf("%.2f-%.2f mi", s.MilesPerDayLow, s.MilesPerDayHigh)})
	tw.AppendRow(table.Row{"Day of year", fmt.Sprintf("%.1f of %d", s.DaysElapsed, s.DaysInYear)})
	tw.Render()

	week := table.NewWriter()
	week.SetOutputMirror(os.Stdout)
	week.AppendHeader(table.Row{"Day", "Date", "Run", "Miles", "Pace"})
	for _, d := range s.Last7Days {
		name, miles, pace := "", "", ""
		if d.Run != nil {
			name = d.Run.Name
			if d.IsFallback {
				name += " (last week)"
			}
			miles = fmt.Sprintf("%.1f", d.Run.DistanceMi)
			pace = d.Run.Pace
		}
		day := d.DayName
		if d.IsToday {
			day += "*"
		}
		week.AppendRow(table.Row{day, d.Date, name, miles, pace})
	}
	week.Render()
}

func syncCmd() *cobra.Command {
	var year int
	var full bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch and store Strava activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				y := year
				if y == 0 {
					y = time.Now().In(summary.Eastern()).Year()
				}
				added, err := a.Summary.Sync(cmd.Context(), y, full)
				if err != nil {
					return err
				}
				_ = a.Events.Append(cmd.Context(), "strava.sync", events.Detail{
					"year": y, "added": added, "full": full,
				})
				fmt.Printf("stored %d new activities for %d\n", added, y)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to sync (default current)")
	cmd.Flags().BoolVar(&full, "full", false, "refetch the whole year instead of a delta")
	return cmd
}

func activitiesCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List stored activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				y := year
				if y == 0 {
					y = time.Now().In(summary.Eastern()).Year()
				}
				items, err := a.Store.ActivitiesForYear(cmd.Context(), y)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Date", "Type", "Name", "Miles", "Elev", "Pace"})
				for _, act := range items {
					tw.AppendRow(table.Row{
						act.ID,
						act.StartDate,
						act.Type,
						act.Name,
						fmt.Sprintf("%.1f", summary.Miles(act.Distance)),
						fmt.Sprintf("%.0f", summary.Feet(act.TotalElevationGain)),
						summary.FormatPace(act.Distance, act.MovingTime),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to list (default current)")
	cmd.AddCommand(activitiesClearCmd())
	return cmd
}

func activitiesClearCmd() *cobra.Command {
	var year int
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete stored activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 && !all {
				return fmt.Errorf("pass --year or --all")
			}
			return withApp(func(a *app.App) error {
				y := year
				if all {
					y = 0
				}
				n, err := a.Store.ClearYear(cmd.Context(), y)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d activities\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to clear")
	cmd.Flags().BoolVar(&all, "all", false, "clear every year")
	return cmd
}

func weatherCmd() *cobra.Command {
	var name, lat, lon string
	var noCache bool
	var hours int
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show the hourly forecast for a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				la, lo, err := resolveCoords(cmd.Context(), a, name, lat, lon)
				if err != nil {
					return err
				}
				fc, err := a.Weather.Forecast(cmd.Context(), la, lo, !noCache)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(fc)
				}
				fmt.Println(fc.City)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Temp", "Precip", "Forecast"})
				for i, p := range fc.Periods {
					if i >= hours {
						break
					}
					precip := ""
					if p.ProbabilityOfPrecipitation.Value != nil {
						precip = fmt.Sprintf("%.0f%%", *p.ProbabilityOfPrecipitation.Value)
					}
					tw.AppendRow(table.Row{
						p.StartTime,
						fmt.Sprintf("%d°%s", p.Temperature, p.TemperatureUnit),
						precip,
						p.ShortForecast,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "location", "", "saved location name")
	cmd.Flags().StringVar(&lat, "lat", "", "latitude")
	cmd.Flags().StringVar(&lon, "lon", "", "longitude")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the forecast cache")
	cmd.Flags().IntVar(&hours, "hours", 12, "hours of forecast to show")
	return cmd
}

// resolveCoords picks a coordinate from, in order: explicit flags, a saved
// location, the first config location.
func resolveCoords(ctx context.Context, a *app.App, name, lat, lon string) (string, string, error) {
	if lat != "" && lon != "" {
		return lat, lon, nil
	}
	if name != "" {
		loc, err := a.Store.GetLocationByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", "", fmt.Errorf("no saved location named %s", name)
			}
			return "", "", err
		}
		return loc.Lat, loc.Lon, nil
	}
	if locs, err := a.Store.ListLocations(ctx); err == nil && len(locs) > 0 {
		return locs[0].Lat, locs[0].Lon, nil
	}
	if len(a.Config.Locations) > 0 {
		l := a.Config.Locations[0]
		return l.Lat, l.Lon, nil
	}
	return "", "", fmt.Errorf("no location; pass --lat/--lon or add one with kds locations add")
}

func locationsCmd() *cobra.Command {
	loc := &cobra.Command{Use: "locations", Short: "Manage saved weather locations"}
	loc.AddCommand(locationsAddCmd())
	loc.AddCommand(locationsListCmd())
	loc.AddCommand(locationsRemoveCmd())
	return loc
}

func locationsAddCmd() *cobra.Command {
	var name, lat, lon string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || lat == "" || lon == "" {
				return fmt.Errorf("--name, --lat and --lon are required")
			}
			return withApp(func(a *app.App) error {
				saved, err := a.Store.AddLocation(cmd.Context(), store.Location{Name: name, Lat: lat, Lon: lon})
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "location name")
	cmd.Flags().StringVar(&lat, "lat", "", "latitude")
	cmd.Flags().StringVar(&lon, "lon", "", "longitude")
	return cmd
}

func locationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				items, err := a.Store.ListLocations(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Lat", "Lon"})
				for _, l := range items {
					tw.AppendRow(table.Row{l.Name, l.Lat, l.Lon})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func locationsRemoveCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a saved location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withApp(func(a *app.App) error {
				loc, err := a.Store.GetLocationByName(cmd.Context(), name)
				if err != nil {
					return err
				}
				if err := a.Store.DeleteLocation(cmd.Context(), loc.ID); err != nil {
					return err
				}
				fmt.Println("removed", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "location name")
	return cmd
}

func cacheCmd() *cobra.Command {
	c := &cobra.Command{Use: "cache", Short: "Manage the response cache"}
	c.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				n, err := a.Cache.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("removed %d expired entries\n", n)
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				return a.Cache.Clear(cmd.Context())
			})
		},
	})
	return c
}

func withApp(fn func(*app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
