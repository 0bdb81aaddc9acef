package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/api"
	"github.com/BTreeMap/TastingFlow/internal/flow"
	"github.com/BTreeMap/TastingFlow/internal/genai"
	"github.com/BTreeMap/TastingFlow/internal/lockfile"
	"github.com/BTreeMap/TastingFlow/internal/messaging"
	"github.com/BTreeMap/TastingFlow/internal/scheduler"
	"github.com/BTreeMap/TastingFlow/internal/store"
	"github.com/BTreeMap/TastingFlow/internal/submission"
	"github.com/BTreeMap/TastingFlow/internal/twiliowhatsapp"
	"github.com/BTreeMap/TastingFlow/internal/util"
	"github.com/BTreeMap/TastingFlow/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TastingFlow state data
	DefaultStateDir = "/var/lib/tastingflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "tastingflow.db"
	// DefaultNotifyInterval is how often queued host notifications are polled
	DefaultNotifyInterval = 5 * time.Second
	// DefaultSessionTTL is how long an in-memory session is kept after it starts
	DefaultSessionTTL = 12 * time.Hour
	// DefaultSweepSchedule is the cron expression for dropping expired sessions
	DefaultSweepSchedule = "@every 10m"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping TastingFlow")
	if err := run(ctx, flags); err != nil {
		slog.Error("TastingFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TastingFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	APIAddr        string
	OpenAIKey      string
	OpenAIModel    string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	WhatsAppDSN    string
	CatalogFile    string
	DedupeQs       bool
	NotifyInterval time.Duration
	SessionTTL     time.Duration
	SweepSchedule  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       string
	dbDSN          string
	apiAddr        string
	openaiKey      string
	openaiModel    string
	twilioSID      string
	twilioToken    string
	twilioFrom     string
	whatsappDSN    string
	qrOutput       string
	numericCode    bool
	catalogFile    string
	dedupe         bool
	notifyInterval time.Duration
	sessionTTL     time.Duration
	sweepSchedule  string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("TASTINGFLOW_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAddr:        os.Getenv("API_ADDR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
		WhatsAppDSN:    os.Getenv("TASTINGFLOW_WHATSAPP_DB_DSN"),
		CatalogFile:    os.Getenv("TASTINGFLOW_CATALOG_FILE"),
		DedupeQs:       util.ParseBoolEnv("TASTINGFLOW_DEDUPE_QUESTIONS", false),
		NotifyInterval: util.ParseDurationEnv("TASTINGFLOW_NOTIFY_INTERVAL", DefaultNotifyInterval),
		SessionTTL:     util.ParseDurationEnv("TASTINGFLOW_SESSION_TTL", DefaultSessionTTL),
		SweepSchedule:  os.Getenv("TASTINGFLOW_SWEEP_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TASTINGFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAPIAddr
	}
	if config.SweepSchedule == "" {
		config.SweepSchedule = DefaultSweepSchedule
	}

	slog.Debug("environment variables loaded",
		"TASTINGFLOW_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"TASTINGFLOW_WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"TASTINGFLOW_CATALOG_FILE", config.CatalogFile,
		"TASTINGFLOW_DEDUPE_QUESTIONS", config.DedupeQs,
		"TASTINGFLOW_NOTIFY_INTERVAL", config.NotifyInterval,
		"TASTINGFLOW_SESSION_TTL", config.SessionTTL,
		"TASTINGFLOW_SWEEP_SCHEDULE", config.SweepSchedule)
	return config
}

// parseCommandLineFlags parses args with environment defaults. An explicit -state-dir moves
// the default SQLite database along with it.
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("tastingflow", flag.ContinueOnError)
	fs.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for TastingFlow data (overrides $TASTINGFLOW_STATE_DIR)")
	fs.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "database DSN; a file path selects SQLite, a postgres URL selects PostgreSQL, empty keeps data in memory (overrides $DATABASE_URL)")
	fs.StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&flags.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key for tasting summaries (overrides $OPENAI_API_KEY)")
	fs.StringVar(&flags.openaiModel, "openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)")
	fs.StringVar(&flags.twilioSID, "twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)")
	fs.StringVar(&flags.twilioToken, "twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)")
	fs.StringVar(&flags.twilioFrom, "twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)")
	fs.StringVar(&flags.whatsappDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store; when set, host notices go out from a linked WhatsApp account (overrides $TASTINGFLOW_WHATSAPP_DB_DSN)")
	fs.StringVar(&flags.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&flags.numericCode, "numeric", false, "print the WhatsApp pairing code as text instead of a QR code")
	fs.StringVar(&flags.catalogFile, "catalog-file", config.CatalogFile, "YAML catalog imported at startup, replacing stored packages (overrides $TASTINGFLOW_CATALOG_FILE)")
	fs.BoolVar(&flags.dedupe, "dedupe-questions", config.DedupeQs, "drop repeated questions within a bottle (overrides $TASTINGFLOW_DEDUPE_QUESTIONS)")
	fs.DurationVar(&flags.notifyInterval, "notify-interval", config.NotifyInterval, "poll interval for queued host notifications (overrides $TASTINGFLOW_NOTIFY_INTERVAL)")
	fs.DurationVar(&flags.sessionTTL, "session-ttl", config.SessionTTL, "how long sessions are kept after they start (overrides $TASTINGFLOW_SESSION_TTL)")
	fs.StringVar(&flags.sweepSchedule, "sweep-schedule", config.SweepSchedule, "cron expression for dropping expired sessions (overrides $TASTINGFLOW_SWEEP_SCHEDULE)")
	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	if flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && flags.stateDir != config.StateDir {
		flags.dbDSN = filepath.Join(flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"apiAddr", flags.apiAddr,
		"openaiKeySet", flags.openaiKey != "",
		"twilioSet", flags.twilioSID != "",
		"catalogFile", flags.catalogFile,
		"dedupe", flags.dedupe,
		"notifyInterval", flags.notifyInterval,
		"sessionTTL", flags.sessionTTL,
		"sweepSchedule", flags.sweepSchedule)
	return flags, nil
}

// openStore picks the backend from the DSN. SQLite databases take the state directory lock;
// the returned release func frees it.
func openStore(flags Flags) (store.Store, func(), error) {
	if flags.dbDSN == "" {
		slog.Warn("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), func() {}, nil
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(flags.dbDSN))
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}

	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", flags.dbDSN)
	lock, err := lockfile.AcquireLock(flags.stateDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(flags.dbDSN))
	if err != nil {
		lock.Release()
		return nil, nil, err
	}
	return st, func() {
		if err := lock.Release(); err != nil {
			slog.Error("Failed to release state directory lock", "error", err)
		}
	}, nil
}

// buildMessagingService picks the host notification transport: a linked WhatsApp account when
// a whatsmeow store is configured, Twilio when credentials are, and a logging stand-in otherwise.
// The returned func releases the transport.
func buildMessagingService(ctx context.Context, flags Flags) (messaging.Service, func(), error) {
	if flags.whatsappDSN != "" {
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(flags.whatsappDSN)}
		if flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(flags.qrOutput))
		}
		if flags.numericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), client.Close, nil
	}
	if flags.twilioSID == "" && flags.twilioToken == "" {
		slog.Warn("Twilio not configured, host notifications will only be logged")
		return messaging.NewLogService(), func() {}, nil
	}
	client, err := twiliowhatsapp.NewClient(
		twiliowhatsapp.WithAccountSID(flags.twilioSID),
		twiliowhatsapp.WithAuthToken(flags.twilioToken),
		twiliowhatsapp.WithFromWhats(flags.twilioFrom),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
	}
	return messaging.NewTwilioService(client), func() {}, nil
}

// buildSubmissionOptions enables generated tasting notes when an OpenAI key is configured.
func buildSubmissionOptions(flags Flags) []submission.Option {
	if flags.openaiKey == "" {
		slog.Debug("No OpenAI key, submissions use plain summaries")
		return nil
	}
	genaiOpts := []genai.Option{genai.WithAPIKey(flags.openaiKey)}
	if flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.openaiModel))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client unavailable, submissions use plain summaries", "error", err)
		return nil
	}
	return []submission.Option{submission.WithSummarizer(client)}
}

// run wires the store, the notification sender and the API server and serves until ctx ends.
func run(ctx context.Context, flags Flags) error {
	st, release, err := openStore(flags)
	if err != nil {
		var lockErr *lockfile.LockError
		if errors.As(err, &lockErr) {
			return fmt.Errorf("another instance holds %s (%s): %w", lockErr.LockPath, lockErr.Holder, err)
		}
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer release()
	defer st.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if flags.catalogFile != "" {
		cf, err := store.ReadCatalogFile(flags.catalogFile)
		if err != nil {
			return err
		}
		if _, err := store.ImportCatalog(ctx, st, cf); err != nil {
			return fmt.Errorf("failed to import catalog: %w", err)
		}
	}

	msgService, closeMessaging, err := buildMessagingService(ctx, flags)
	if err != nil {
		return err
	}
	defer closeMessaging()
	sender := store.NewNotificationSender(st, submission.DeliverFunc(msgService), flags.notifyInterval)
	if err := sender.RecoverStale(ctx); err != nil {
		slog.Warn("Failed to recover stale notifications", "error", err)
	}
	go sender.Run(ctx)

	submitter := submission.NewService(st, buildSubmissionOptions(flags)...)
	loader := flow.NewLoader(st, flow.NewAssembler(flow.WithDedupe(flags.dedupe)))
	sessions := flow.NewSessionManager(submitter)

	if flags.sweepSchedule != "" && flags.sessionTTL > 0 {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		err := sched.AddJob("session-sweep", flags.sweepSchedule, func() {
			sessions.PurgeStartedBefore(time.Now().Add(-flags.sessionTTL))
		})
		if err != nil {
			return err
		}
	}

	server := api.NewServer(st, sessions, loader, api.WithAddr(flags.apiAddr))

	slog.Debug("Final configuration", "state_dir", flags.stateDir, "dsn_set", flags.dbDSN != "", "api_addr", flags.apiAddr)
	return server.Run(ctx)
}
