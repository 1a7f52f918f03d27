package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	httpapi "github.com/aussiebroadwan/ident/internal/ident/http"
	"github.com/aussiebroadwan/ident/internal/ident/metrics"
	"github.com/aussiebroadwan/ident/internal/ident/mfatoken"
	"github.com/aussiebroadwan/ident/internal/ident/notify"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/internal/ident/store/drivers/sqlite"
	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application is the running ident server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        *sqlite.Store
	keys      *jwtx.KeyManager
	cipher    *cryptox.AESCipher
	metrics   *metrics.Metrics
	audit     *audit.Recorder
	notifier  *notify.Dispatcher
	mfaTokens mfatoken.Store
	closers   []func() error

	credentials  *service.CredentialService
	mfa          *service.MfaService
	platform     *service.PlatformTokenService
	consents     *service.ConsentService
	authorize    *service.AuthorizeService
	tokens       *service.TokenService
	rotation     *service.KeyRotationService
	housekeeping *service.HousekeepingService

	router *httpapi.Router
	server *http.Server
}

// NewLogger returns the service logger for cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "ident",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenStore opens the configured database and brings its schema up to date.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}

// New builds the application. Nothing listens until Run.
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &Application{cfg: cfg, logger: NewLogger(cfg)}
	ctx = slogx.WithContext(ctx, app.logger)

	if err := app.init(ctx); err != nil {
		_ = app.close()
		return nil, err
	}
	return app, nil
}

func (app *Application) init(ctx context.Context) error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.db = db
	app.closers = append(app.closers, db.Close)
	app.logger.Info("database ready", "file", app.cfg.DatabaseFile)

	app.cipher, err = LoadCipher(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("load master key: %w", err)
	}

	app.keys, err = InitKeys(ctx, app.cfg, app.db, app.cipher, app.logger)
	if err != nil {
		return err
	}

	if app.cfg.MetricsEnabled {
		app.metrics = metrics.New()
	}
	app.initAudit()
	app.initNotifier()
	if err := app.initMfaTokens(ctx); err != nil {
		return err
	}
	if err := app.initServices(); err != nil {
		return err
	}
	app.initHTTP()
	return nil
}

func (app *Application) initAudit() {
	sinks := []audit.Sink{audit.SlogSink{}}
	if app.metrics != nil {
		sinks = append(sinks, audit.CounterSink{Counter: app.metrics.AuditEvents})
	}
	app.audit = audit.NewRecorder(sinks...)
}

// initNotifier routes email through SMTP when a relay is configured. SMS has
// no provider and is logged.
func (app *Application) initNotifier() {
	var email notify.Sender = notify.LogSender{}
	if app.cfg.SMTPHost != "" {
		email = &notify.SMTPSender{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.SMTPFrom,
			TLSMode:  app.cfg.SMTPTLSMode,
		}
		app.logger.Info("email delivery via smtp", "host", app.cfg.SMTPHost, "port", app.cfg.SMTPPort)
	} else {
		app.logger.Warn("no smtp relay configured, email is logged instead of delivered")
	}
	app.notifier = &notify.Dispatcher{Email: email, SMS: notify.LogSender{}, LinkBase: app.cfg.LinkBase}
}

// initMfaTokens keeps mfa_tokens in redis when configured, so any replica can
// finish a login another one started.
func (app *Application) initMfaTokens(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		app.mfaTokens = mfatoken.NewMemory(app.cfg.MfaTokenTTL, app.cfg.MfaTokenMaxAttempts)
		return nil
	}
	r, err := mfatoken.NewRedisFromURL(app.cfg.RedisURL, app.cfg.MfaTokenTTL, app.cfg.MfaTokenMaxAttempts)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, r.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	app.mfaTokens = r
	app.logger.Info("mfa tokens stored in redis")
	return nil
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return err
	}
	hasher := cryptox.NewArgon2Hasher(pepper)
	secrets := cryptox.RandomSecrets{}
	digest := cryptox.SHA256Digester{}
	vault := domain.TokenVault{Cipher: app.cipher, Digest: digest}

	issuer := &service.JWTIssuer{
		Keys:       app.keys,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		IDTTL:      app.cfg.IDTokenTTL,
	}

	app.platform = &service.PlatformTokenService{Store: app.db, Issuer: issuer, Vault: vault, Audit: app.audit}
	app.credentials = &service.CredentialService{
		Store:         app.db,
		Hasher:        hasher,
		Secrets:       secrets,
		Digest:        digest,
		Notifier:      app.notifier,
		Audit:         app.audit,
		Tokens:        app.platform,
		MfaTokens:     app.mfaTokens,
		Lockout:       domain.LockoutPolicy{Threshold: app.cfg.LockoutThreshold, Duration: app.cfg.LockoutDuration},
		ResetTTL:      app.cfg.ResetTTL,
		CanDisableMfa: app.cfg.AllowMfaDisable,
	}
	app.mfa = &service.MfaService{
		Store: app.db,
		Kit: domain.MfaKit{
			TOTP:         cryptox.NewTOTP(totpIssuer(app.cfg.Issuer)),
			Cipher:       app.cipher,
			Secrets:      secrets,
			Digest:       digest,
			MaxTimeSteps: app.cfg.TOTPMaxTimeSteps,
		},
		Notifier:  app.notifier,
		MfaTokens: app.mfaTokens,
		Tokens:    app.platform,
		Audit:     app.audit,
	}
	app.consents = &service.ConsentService{Store: app.db, Audit: app.audit}
	app.authorize = &service.AuthorizeService{
		Store:      app.db,
		Secrets:    secrets,
		Digest:     digest,
		Audit:      app.audit,
		LoginURL:   app.cfg.LoginURL,
		ConsentURL: app.cfg.ConsentURL,
		CodeTTL:    app.cfg.CodeTTL,
	}
	app.tokens = &service.TokenService{Store: app.db, Hasher: hasher, Issuer: issuer, Vault: vault, Audit: app.audit}

	app.rotation = &service.KeyRotationService{
		Keys:     app.keys,
		RSABits:  app.cfg.RSABits,
		Lifetime: app.cfg.KeyLifetime,
	}
	if app.cfg.KeyMode == KeyModePersistent {
		app.rotation.Store = app.db
		app.rotation.Sealer = app.cipher
	}

	app.housekeeping = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)
	app.housekeeping.Keys = app.rotation
	if app.metrics != nil {
		app.housekeeping.Removed = app.metrics.Housekeeping
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, app.cfg.Issuer, BuildVersion, app.db, app.logger)
	router.Credentials = app.credentials
	router.Mfa = app.mfa
	router.Platform = app.platform
	router.Authorize = app.authorize
	router.Tokens = app.tokens
	router.Consents = app.consents
	router.Metrics = app.metrics

	strict, moderate, public := app.cfg.Limits()
	router.Limits = httpapi.Limits{Strict: strict, Moderate: moderate, Public: public}
	if app.cfg.TrustProxy {
		router.ClientIP = httpx.ProxyIPKeyExtractor
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelWarn),
	}
}

// Handler returns the HTTP handler of the application.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves HTTP and runs housekeeping until ctx is cancelled or either
// fails, then shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	defer func() {
		if err := app.close(); err != nil {
			app.logger.Error("close", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(slogx.WithContext(ctx, app.logger))

	g.Go(func() error {
		app.logger.Info("ident listening", "addr", app.cfg.HTTPAddr, "issuer", app.cfg.Issuer, "version", BuildVersion)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.housekeeping.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info("shutting down", "grace_period", app.cfg.ShutdownGracePeriod)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("graceful shutdown failed", "error", err)
			return app.server.Close()
		}
		return nil
	})

	return g.Wait()
}

func (app *Application) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

// totpIssuer is the label authenticator apps show next to the account: the
// issuer host.
func totpIssuer(issuer string) string {
	if u, err := url.Parse(issuer); err == nil && u.Host != "" {
		return u.Host
	}
	return "ident"
}
