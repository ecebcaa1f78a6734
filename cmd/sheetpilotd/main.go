package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"sheetpilot-backend/lib/bot"
	"sheetpilot-backend/lib/browser"
	"sheetpilot-backend/lib/configutil"
	"sheetpilot-backend/lib/telemetry"
	"sheetpilot-backend/lib/util/serviceutil"
	"sheetpilot-backend/services/auth"
	"sheetpilot-backend/services/gateway"
	"sheetpilot-backend/services/keychain"
	"sheetpilot-backend/services/timesheet"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	telemetry.InitSlog(*verbose)
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	config.applyDefaults()

	t, err := telemetry.SetupFromEnv(ctx, "sheetpilotd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	// malformed routing or login tables are fatal before serving
	if err := bot.ValidateSteps(bot.LoginSteps()); err != nil {
		serviceutil.Fatal("invalid login step table", err)
	}
	router, err := bot.NewRouter(bot.DefaultQuarters())
	if err != nil {
		serviceutil.Fatal("invalid quarter configuration", err)
	}

	authService, kc, ts, err := buildServices(config, router)
	if err != nil {
		serviceutil.Fatal("failed to initialize services", err)
	}

	// rows orphaned in Submitting by a previous crash are marked
	// Failed before any request can observe them
	if _, err := ts.RecoverStuck(ctx); err != nil {
		serviceutil.Fatal("failed to recover stuck submissions", err)
	}
	if _, err := authService.PruneExpired(ctx); err != nil {
		serviceutil.Fatal("failed to prune expired sessions", err)
	}
	go pruneSessions(ctx, authService)

	gw := gateway.NewService(authService, kc, ts, router)
	go serviceutil.StartHttpServer(config.Port, gw.Handler())

	<-ctx.Done()
}

// pruneSessions deletes expired sessions hourly until shutdown.
// Validate already drops expired tokens on read, so a failed pass
// only costs storage until the next tick.
func pruneSessions(ctx context.Context, authService auth.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := authService.PruneExpired(ctx); err != nil {
				slog.ErrorContext(ctx, "session prune failed", "err", err)
			}
		}
	}
}

func buildServices(config Config, router *bot.Router) (auth.Service, keychain.Service, timesheet.Service, error) {
	authDB, err := openDatabase(config.Databases.Auth, authSchema)
	if err != nil {
		return auth.Service{}, keychain.Service{}, timesheet.Service{}, err
	}
	keychainDB, err := openDatabase(config.Databases.Keychain, keychainSchema)
	if err != nil {
		return auth.Service{}, keychain.Service{}, timesheet.Service{}, err
	}
	timesheetDB, err := openDatabase(config.Databases.Timesheet, timesheetSchema)
	if err != nil {
		return auth.Service{}, keychain.Service{}, timesheet.Service{}, err
	}

	kc := keychain.NewService(keychainDB)
	authService := auth.NewService(authDB, auth.Options{
		AdminUsername: config.Admin.Username,
		AdminPassword: config.Admin.Password,
	})

	runner := func(ctx context.Context, rows []bot.TimesheetRow, creds bot.Credentials, formConfig bot.FormConfig) (bot.AutomationResult, error) {
		client := browser.NewClient(browser.Options{
			Endpoint: config.Webdriver.Endpoint,
			Headless: config.Webdriver.Headless,
		})
		defer client.Close(ctx)
		return bot.RunTimesheet(ctx, client, rows, creds, formConfig)
	}

	ts := timesheet.NewService(timesheetDB, kc, router, runner, timesheet.Options{
		LoginURL: config.LoginURL,
	})
	return authService, kc, ts, nil
}
