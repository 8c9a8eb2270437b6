// Command server runs the ONVIF request-processing engine: the SOAP/HTTP
// boundary for the four camera services (device, media, ptz, imaging) and
// the disjoint admin/provisioning REST plane, on separate listeners.
//
// Startup follows four phases, in order: Configuration (load and validate
// YAML, fail closed), Platform (RSS reader, crypto keyring), Services (user
// store, admission tables, handler registry), Network (bind the HTTP
// listeners). Discovery is out of scope and is logged as disabled rather
// than silently skipped.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/onvif-gateway/internal/admission"
	"github.com/technosupport/onvif-gateway/internal/adminapi"
	"github.com/technosupport/onvif-gateway/internal/auth"
	"github.com/technosupport/onvif-gateway/internal/config"
	"github.com/technosupport/onvif-gateway/internal/crypto"
	"github.com/technosupport/onvif-gateway/internal/digestauth"
	"github.com/technosupport/onvif-gateway/internal/dispatch"
	"github.com/technosupport/onvif-gateway/internal/hal"
	"github.com/technosupport/onvif-gateway/internal/handlers"
	"github.com/technosupport/onvif-gateway/internal/httpserver"
	"github.com/technosupport/onvif-gateway/internal/metrics"
	"github.com/technosupport/onvif-gateway/internal/platform/paths"
	"github.com/technosupport/onvif-gateway/internal/tokens"
	"github.com/technosupport/onvif-gateway/internal/users"
	"github.com/technosupport/onvif-gateway/internal/wssecurity"
)

func main() {
	configPath := flag.String("config", "", "path to the engine's YAML configuration (defaults under the data root)")
	adminListenAddr := flag.String("admin-listen", ":8443", "listen address for the admin/provisioning REST plane")
	metricsListenAddr := flag.String("metrics-listen", ":9090", "listen address for the Prometheus /metrics endpoint")
	flag.Parse()

	if err := run(*configPath, *adminListenAddr, *metricsListenAddr); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, adminListenAddr, metricsListenAddr string) error {
	// --- Phase: Configuration ---
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("configuration: ensure directories: %w", err)
	}
	resolvedConfigPath := paths.ResolveConfigPath(configPath)
	cfg, err := config.Load(resolvedConfigPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	cfgStore := config.NewStore(resolvedConfigPath, cfg)
	log.Printf("configuration loaded from %s", resolvedConfigPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cfgStore.Watch(ctx)

	// --- Phase: Platform ---
	keyring := crypto.NewKeyring()
	if err := keyring.LoadFromEnv(); err != nil {
		return fmt.Errorf("platform: load keyring: %w", err)
	}
	memMonitor, err := admission.NewMemoryMonitor(cfg.Memory.SoftLimitBytes, cfg.Memory.HardLimitBytes)
	if err != nil {
		return fmt.Errorf("platform: memory monitor: %w", err)
	}
	log.Printf("platform ready: keyring loaded, memory watermarks soft=%d hard=%d bytes",
		cfg.Memory.SoftLimitBytes, cfg.Memory.HardLimitBytes)

	// --- Phase: Services ---
	accountStore, accountsDB, err := buildAccountStore(keyring)
	if err != nil {
		return fmt.Errorf("services: account store: %w", err)
	}
	if accountsDB != nil {
		defer accountsDB.Close()
	}

	rateLimit := admission.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, time.Minute)
	bruteForce := admission.NewBruteForceGuard(
		cfg.BruteForce.MaxFailures,
		time.Duration(cfg.BruteForce.FailureWindowSeconds)*time.Second,
		time.Duration(cfg.BruteForce.BlockDurationSeconds)*time.Second,
	)
	xmlFilter := admission.NewXMLFilter(admission.DefaultMaxPayloadSize, admission.DefaultMaxEntityExpansions)
	gate := admission.NewGate(memMonitor, rateLimit, bruteForce, xmlFilter)
	go gate.RunJanitor(ctx, time.Minute)

	wsSecurity, err := wssecurity.New(wssecurity.Config{
		ClockSkew:         time.Duration(cfg.WsSecurity.ClockSkewSeconds) * time.Second,
		NonceTTL:          time.Duration(cfg.WsSecurity.NonceTTLSeconds) * time.Second,
		MaxNonceCacheSize: cfg.WsSecurity.MaxNonceCacheSize,
		RequireDigest:     cfg.WsSecurity.RequireDigest,
	}, dispatch.PasswordLookupFor(accountStore))
	if err != nil {
		return fmt.Errorf("services: ws-security validator: %w", err)
	}
	digest := digestauth.New(cfg.Server.Realm, time.Duration(cfg.Digest.NonceValiditySeconds)*time.Second)

	driver := hal.NewNoopDriver(
		envOr("ONVIF_STREAM_BASE", "rtsp://camera.local/stream"),
		envOr("ONVIF_SNAPSHOT_BASE", "http://camera.local/snapshot"),
	)
	profiles := handlers.NewProfileManager(handlers.DefaultMaxProfiles)
	ptzState := handlers.NewPTZState(handlers.DefaultMaxPresetsPerProfile)

	registry := handlers.NewRegistry(
		handlers.NewDeviceHandler(handlers.DeviceInfo{
			Manufacturer:    envOr("ONVIF_MANUFACTURER", "Technosupport"),
			Model:           envOr("ONVIF_MODEL", "TS-ONVIF-GW"),
			FirmwareVersion: envOr("ONVIF_FIRMWARE_VERSION", "1.0.0"),
			SerialNumber:    envOr("ONVIF_SERIAL_NUMBER", "000000000000"),
			HardwareID:      envOr("ONVIF_HARDWARE_ID", "generic"),
		}),
		handlers.NewMediaHandler(profiles, driver),
		handlers.NewPTZHandler(profiles, ptzState, driver),
		handlers.NewImagingHandler(profiles, driver),
	)

	checker := dispatch.NewUserStoreChecker(wsSecurity, accountStore)
	dispatcher := dispatch.New(registry, checker, cfg.Server.AuthEnabled)

	log.Printf("services ready: auth_enabled=%t realm=%s", cfg.Server.AuthEnabled, cfg.Server.Realm)

	// --- Phase: Discovery (out of scope) ---
	log.Printf("discovery: disabled: not in scope")

	// --- Phase: Network ---
	reg := prometheus.NewRegistry()
	metricsCollector := metrics.New(reg)
	go refreshMetricsLoop(ctx, metricsCollector, metrics.Sources{
		Memory:     memMonitor,
		RateLimit:  rateLimit,
		BruteForce: bruteForce,
		WSSecurity: wsSecurity,
		Digest:     digest,
	})

	onvifServer := httpserver.New(httpserver.Config{
		ListenAddress:  cfg.Server.ListenAddress,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSeconds) * time.Second,
	}, gate, dispatcher, digest, driver.Snapshot)
	onvifServer.SetMetrics(metricsCollector)
	onvifServer.SetDigestPasswordLookup(dispatch.PasswordLookupFor(accountStore))

	adminServer := buildAdminServer(accountStore, gate, cfgStore)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsListenAddr, Handler: metricsMux}
	adminSrv := &http.Server{Addr: adminListenAddr, Handler: adminServer.Router()}

	errCh := make(chan error, 3)
	go func() { errCh <- onvifServer.Serve(ctx) }()
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin plane: %w", err)
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: %w", err)
		}
	}()

	log.Printf("network ready: onvif=%s admin=%s metrics=%s", cfg.Server.ListenAddress, adminListenAddr, metricsListenAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		_ = adminSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		log.Printf("server stopped gracefully")
		return nil
	case err := <-errCh:
		return err
	}
}

// buildAccountStore wires the ONVIF camera account store against Postgres
// when DATABASE_URL is set, falling back to an in-memory store for
// single-node deployments without a database. The returned *sql.DB is nil
// in the fallback case.
func buildAccountStore(keyring *crypto.Keyring) (users.Store, *sql.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Printf("DATABASE_URL not set, using in-memory account store")
		return users.NewMemoryStore(keyring), nil, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Printf("using Postgres-backed account store")
	return users.NewPostgresStore(db, keyring), db, nil
}

// buildAdminServer wires the admin/provisioning REST plane. The operator
// bootstrap credential comes from the environment (ADMIN_USERNAME /
// ADMIN_PASSWORD_HASH, an Argon2id hash produced by cmd/seed-admin); the
// admin plane does not yet persist additional operator accounts across
// restarts (see DESIGN.md).
func buildAdminServer(accounts users.Store, gate *admission.Gate, cfgStore *config.Store) *adminapi.Server {
	operators := adminapi.NewMemoryOperatorStore()
	if username, hash := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD_HASH"); username != "" && hash != "" {
		operators.PutHash(username, hash, "administrator")
	} else {
		log.Printf("ADMIN_USERNAME/ADMIN_PASSWORD_HASH not set; admin plane login will reject all credentials")
	}

	signingKey := os.Getenv("ADMIN_JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = ephemeralSigningKey()
	}
	tm := tokens.NewManager(signingKey)

	var blacklist auth.TokenBlacklist
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		blacklist = auth.NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: redisAddr}))
	} else {
		log.Printf("REDIS_ADDR not set; admin plane token revocation is disabled for this process")
		blacklist = noopBlacklist{}
	}

	return adminapi.New(operators, accounts, tm, blacklist, gate, cfgStore)
}

type noopBlacklist struct{}

func (noopBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) { return false, nil }
func (noopBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	return nil
}

func ephemeralSigningKey() string {
	log.Printf("ADMIN_JWT_SIGNING_KEY not set; generating an ephemeral key (tokens will not survive a restart)")
	return fmt.Sprintf("ephemeral-%d", time.Now().UnixNano())
}

func refreshMetricsLoop(ctx context.Context, m *metrics.Metrics, sources metrics.Sources) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(sources)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
