package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"editguard/internal/driver"
	"editguard/internal/kernel"
	"editguard/modules/editguard"
	"editguard/modules/welcome"
	"editguard/pkg/guard"
)

const (
	envConfigFile             = "EDITGUARD_CONFIG_FILE"
	defaultConfigFilePath     = "config/bot.json"
	alternateConfigFilePath   = "bin/config/bot.json"
	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 2
)

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int

	sweepInterval time.Duration
	retention     time.Duration
	ledgerSize    int

	drivers []driver.Definition
}

type fileConfig struct {
	LogLevel string            `json:"log_level"`
	Kernel   fileKernelConfig  `json:"kernel"`
	Guard    fileGuardConfig   `json:"guard"`
	Drivers  []fileDriverEntry `json:"drivers"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `json:"module_hook_timeout"`
	ShutdownTimeout     string `json:"shutdown_timeout"`
	SubscriptionBuffer  *int   `json:"subscription_buffer"`
	SubscriptionWorkers *int   `json:"subscription_workers"`
}

type fileGuardConfig struct {
	SweepInterval string `json:"sweep_interval"`
	Retention     string `json:"retention"`
	LedgerSize    *int   `json:"ledger_size"`
}

type fileDriverEntry struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

func run() error {
	registry, err := driver.NewBuiltinRegistry()
	if err != nil {
		return fmt.Errorf("new builtin driver registry: %w", err)
	}

	cfg, err := loadConfig(registry)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	kernelRuntime := buildKernelRuntime(logger, cfg)

	runtime, err := buildDriverRuntime(context.Background(), logger, cfg, registry)
	if err != nil {
		return err
	}

	if err := kernelRuntime.RegisterDriver(runtime.Driver); err != nil {
		return fmt.Errorf("register driver %s: %w", runtime.Driver.Name(), err)
	}
	if err := registerRuntimeServices(kernelRuntime, logger, runtime); err != nil {
		return err
	}
	if err := registerRuntimeModules(context.Background(), kernelRuntime, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func loadConfig(registry *driver.Registry) (appConfig, error) {
	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	if err := applyConfigFile(&cfg, configFile); err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(&cfg, registry); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		subscriptionBuffer:  defaultSubscriptionBuffer,
		subscriptionWorkers: defaultSubscriptionWorker,

		drivers: make([]driver.Definition, 0),
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawTimeout := strings.TrimSpace(parsed.Kernel.ModuleHookTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout, "kernel.module_hook_timeout")
		if err != nil {
			return err
		}
		cfg.moduleHookTimeout = timeout
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ShutdownTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout, "kernel.shutdown_timeout")
		if err != nil {
			return err
		}
		cfg.shutdownTimeout = timeout
	}
	if parsed.Kernel.SubscriptionBuffer != nil {
		if *parsed.Kernel.SubscriptionBuffer <= 0 {
			return fmt.Errorf("parse kernel.subscription_buffer: must be > 0")
		}
		cfg.subscriptionBuffer = *parsed.Kernel.SubscriptionBuffer
	}
	if parsed.Kernel.SubscriptionWorkers != nil {
		if *parsed.Kernel.SubscriptionWorkers <= 0 {
			return fmt.Errorf("parse kernel.subscription_workers: must be > 0")
		}
		cfg.subscriptionWorkers = *parsed.Kernel.SubscriptionWorkers
	}

	if rawInterval := strings.TrimSpace(parsed.Guard.SweepInterval); rawInterval != "" {
		interval, err := parsePositiveDuration(rawInterval, "guard.sweep_interval")
		if err != nil {
			return err
		}
		cfg.sweepInterval = interval
	}
	if rawRetention := strings.TrimSpace(parsed.Guard.Retention); rawRetention != "" {
		retention, err := parsePositiveDuration(rawRetention, "guard.retention")
		if err != nil {
			return err
		}
		cfg.retention = retention
	}
	if parsed.Guard.LedgerSize != nil {
		if *parsed.Guard.LedgerSize <= 0 {
			return fmt.Errorf("parse guard.ledger_size: must be > 0")
		}
		cfg.ledgerSize = *parsed.Guard.LedgerSize
	}

	cfg.drivers = make([]driver.Definition, 0, len(parsed.Drivers))
	for index, entry := range parsed.Drivers {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		cfg.drivers = append(cfg.drivers, driver.Definition{
			Name:    strings.TrimSpace(entry.Name),
			Type:    strings.TrimSpace(entry.Type),
			Enabled: enabled,
			Config:  append([]byte(nil), entry.Config...),
		})
		if len(entry.Config) == 0 {
			return fmt.Errorf("parse drivers[%d].config: required", index)
		}
	}

	return nil
}

func parsePositiveDuration(raw string, scope string) (time.Duration, error) {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", scope, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s: must be > 0", scope)
	}

	return parsed, nil
}

func validateAppConfig(cfg *appConfig, registry *driver.Registry) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if registry == nil {
		return fmt.Errorf("nil driver registry")
	}

	enabledCount := 0
	seenNames := make(map[string]struct{}, len(cfg.drivers))
	for _, definition := range cfg.drivers {
		if definition.Name == "" {
			return fmt.Errorf("drivers[].name is required")
		}
		if definition.Type == "" {
			return fmt.Errorf("drivers[%s].type is required", definition.Name)
		}
		if _, exists := seenNames[definition.Name]; exists {
			return fmt.Errorf("drivers[%s]: duplicate name", definition.Name)
		}
		seenNames[definition.Name] = struct{}{}
		if !definition.Enabled {
			continue
		}
		if _, err := registry.PlatformForType(definition.Type); err != nil {
			return fmt.Errorf("drivers[%s].type: %w", definition.Name, err)
		}
		enabledCount++
	}
	if enabledCount == 0 {
		return fmt.Errorf("exactly one enabled driver is required")
	}
	if enabledCount > 1 {
		return fmt.Errorf("exactly one enabled driver is supported, got %d", enabledCount)
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func buildKernelRuntime(logger *slog.Logger, cfg appConfig) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.subscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
	)
}

func buildDriverRuntime(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	registry *driver.Registry,
) (driver.Runtime, error) {
	runtimes, err := registry.BuildEnabled(ctx, cfg.drivers, logger)
	if err != nil {
		return driver.Runtime{}, fmt.Errorf("build drivers: %w", err)
	}
	if len(runtimes) != 1 {
		return driver.Runtime{}, fmt.Errorf("build drivers: expected one runtime, got %d", len(runtimes))
	}

	runtime := runtimes[0]
	if runtime.Dispatcher == nil {
		return driver.Runtime{}, fmt.Errorf("build drivers: runtime is missing an outbound dispatcher")
	}
	if runtime.Membership == nil {
		return driver.Runtime{}, fmt.Errorf("build drivers: runtime is missing a membership resolver")
	}
	if runtime.Self == nil {
		return driver.Runtime{}, fmt.Errorf("build drivers: runtime is missing a self identity provider")
	}

	return runtime, nil
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	runtime driver.Runtime,
) error {
	if err := kernelRuntime.RegisterService(guard.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if err := kernelRuntime.RegisterService(guard.ServiceOutboundDispatcher, runtime.Dispatcher); err != nil {
		return fmt.Errorf("register outbound dispatcher service: %w", err)
	}
	if err := kernelRuntime.RegisterService(guard.ServiceMembershipResolver, runtime.Membership); err != nil {
		return fmt.Errorf("register membership resolver service: %w", err)
	}
	if err := kernelRuntime.RegisterService(guard.ServiceSelfIdentity, runtime.Self); err != nil {
		return fmt.Errorf("register self identity service: %w", err)
	}

	return nil
}

func registerRuntimeModules(ctx context.Context, kernelRuntime *kernel.Kernel, cfg appConfig) error {
	guardOptions := make([]editguard.Option, 0, 3)
	if cfg.sweepInterval > 0 {
		guardOptions = append(guardOptions, editguard.WithSweepInterval(cfg.sweepInterval))
	}
	if cfg.retention > 0 {
		guardOptions = append(guardOptions, editguard.WithRetention(cfg.retention))
	}
	if cfg.ledgerSize > 0 {
		guardOptions = append(guardOptions, editguard.WithStoreOptions(editguard.WithCapacity(cfg.ledgerSize)))
	}

	guardModule := editguard.New(guardOptions...)
	if err := kernelRuntime.RegisterModule(ctx, guardModule); err != nil {
		return fmt.Errorf("register edit guard module: %w", err)
	}
	welcomeModule := welcome.New()
	if err := kernelRuntime.RegisterModule(ctx, welcomeModule); err != nil {
		return fmt.Errorf("register welcome module: %w", err)
	}

	return nil
}
