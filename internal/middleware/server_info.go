package middleware

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"item-record-service/internal/config"

	"go.uber.org/zap"
)

// ServerInfo prints the startup banner
func ServerInfo(cfg *config.Config, logger *zap.Logger) {
	hostname, _ := os.Hostname()

	goVersion := runtime.Version()
	numCPU := runtime.NumCPU()

	startTime := time.Now().Format("2006-01-02 15:04:05")
	port := cfg.Server.Port

	idempotency := "disabled"
	if cfg.Redis.IdempotencyEnabled {
		idempotency = "enabled (ttl " + cfg.Redis.IdempotencyTTL.String() + ")"
	}

	fmt.Println("")
	fmt.Println("🚀 " + boldColor + "Item Record Service API" + resetColor)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("📅 Started at: " + startTime)
	fmt.Println("🌐 Server URL: " + cyanColor + "http://localhost:" + port + resetColor)
	fmt.Println("💻 Hostname: " + hostname)
	fmt.Println("🔧 Go Version: " + goVersion)
	fmt.Println("⚡ CPU Cores: " + fmt.Sprintf("%d", numCPU))
	fmt.Println("")
	fmt.Println("📊 " + boldColor + "Available Endpoints:" + resetColor)
	fmt.Println("   POST " + blueColor + "/api/v1/records" + resetColor + "        - Record a movement")
	fmt.Println("   GET  " + greenColor + "/api/v1/records" + resetColor + "        - List movements")
	fmt.Println("   GET  " + greenColor + "/api/v1/summary" + resetColor + "        - Stock per configuration")
	fmt.Println("   GET  " + greenColor + "/api/v1/sales-by-date" + resetColor + "  - Sales for one day")
	fmt.Println("   GET  " + greenColor + "/api/v1/catalog" + resetColor + "        - Catalog options")
	fmt.Println("")
	fmt.Println("🔍 " + boldColor + "Monitoring:" + resetColor)
	fmt.Println("   📈 Health Check: " + cyanColor + "http://localhost:" + port + "/health" + resetColor)
	fmt.Println("   📊 Metrics: " + cyanColor + "http://localhost:" + port + "/api/v1/monitoring/metrics" + resetColor)
	fmt.Println("   🔌 WebSocket: " + cyanColor + "ws://localhost:" + port + "/api/v1/monitoring/ws" + resetColor)
	fmt.Println("")
	fmt.Println("⚙️  " + boldColor + "Environment:" + resetColor)
	fmt.Println("   🗄️  Storage: " + cfg.Database.Driver)
	fmt.Println("   ✍️  Write mode: " + cfg.Inventory.WriteMode)
	fmt.Println("   📚 Catalog: " + cfg.Inventory.CatalogEnforcement)
	fmt.Println("   🕐 Day boundary: " + cfg.Inventory.DayBoundaryOffset)
	fmt.Println("   🔁 Idempotency: " + idempotency)
	fmt.Println("   📝 Logging: Structured (Zap)")
	fmt.Println("")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("✨ " + boldColor + "Server is ready to handle requests!" + resetColor)
	fmt.Println("")

	logger.Info("Server started successfully",
		zap.String("port", port),
		zap.String("hostname", hostname),
		zap.String("go_version", goVersion),
		zap.Int("cpu_cores", numCPU),
		zap.String("start_time", startTime),
		zap.String("storage_driver", cfg.Database.Driver),
		zap.String("write_mode", cfg.Inventory.WriteMode),
		zap.String("catalog_enforcement", cfg.Inventory.CatalogEnforcement),
		zap.String("day_boundary_offset", cfg.Inventory.DayBoundaryOffset),
	)
}
