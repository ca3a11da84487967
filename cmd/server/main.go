package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/gunpowder/internal/api"
	"github.com/annel0/gunpowder/internal/app"
	"github.com/annel0/gunpowder/internal/config"
	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (или GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Logging.Dir)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	level := logging.ParseLevel(cfg.Logging.Level)
	logging.SetDefaultLevels(level, logging.DEBUG)
	for _, component := range []string{"fuse", "world", "server"} {
		_ = logging.GetLoggerManager().SetLogLevel(component, level, logging.DEBUG)
	}

	logging.Info("🎮 Запуск сервера механики пороха (мир %s, seed %d)...", cfg.World.ID, cfg.World.Seed)

	ctx := context.Background()
	shutdownTelemetry := observability.Shutdown(observability.NoopShutdown)
	if cfg.Telemetry.Enabled {
		if shutdownTelemetry, err = observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.World.ID); err != nil {
			logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
			shutdownTelemetry = observability.NoopShutdown
		}
	}

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	host, err := app.New(cfg, app.Options{MetricsAddr: metricsAddr})
	if err != nil {
		logging.Error("❌ Ошибка сборки сервера: %v", err)
		os.Exit(1)
	}
	if err := host.Start(); err != nil {
		logging.Error("❌ Ошибка запуска игрового цикла: %v", err)
		_ = host.Close()
		os.Exit(1)
	}

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	rest := api.NewRestServer(api.Config{
		Port:        restPort,
		Host:        host,
		ServiceName: cfg.Telemetry.ServiceName,
		AdminToken:  cfg.Server.GetAdminToken(),
	})
	rest.Start()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsAddr)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			reload(ctx, *configPath, host)
			continue
		}
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
		break
	}

	// === GRACEFUL SHUTDOWN ===
	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := rest.Stop(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := host.Close(); err != nil {
		logging.Error("❌ Ошибка остановки сервера: %v", err)
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		logging.Warn("⚠️ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// reload перечитывает конфигурацию по SIGHUP и применяет секцию gunpowder.
func reload(ctx context.Context, path string, host *app.Host) {
	cfg, err := config.Load(path)
	if err != nil {
		logging.Error("❌ Конфигурация не перечитана: %v", err)
		return
	}
	var reloadErr error
	if err := host.Do(ctx, func() { reloadErr = host.Reload(cfg) }); err != nil {
		logging.Error("❌ Игровой цикл недоступен: %v", err)
		return
	}
	if reloadErr != nil {
		logging.Error("❌ Ошибка применения конфигурации: %v", reloadErr)
	}
}
