package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`

	// Seed-директория с YAML-определениями endpoint'ов
	SeedDir string `json:"seedDir"`

	// Фиксированный владелец для локальной работы: создаётся на старте
	// с заранее известным токеном (пусто = не создавать)
	BootstrapLogin string `json:"bootstrapLogin"`
	BootstrapToken string `json:"bootstrapToken"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		AutoMigrate: false,

		SeedDir: "seed",

		BootstrapLogin: "",
		BootstrapToken: "",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("FABRIKA_PORT", cfg.Port)
	cfg.DBURL = getenv("FABRIKA_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("FABRIKA_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.SeedDir = getenv("FABRIKA_SEED_DIR", cfg.SeedDir)
	cfg.BootstrapLogin = getenv("FABRIKA_BOOTSTRAP_LOGIN", cfg.BootstrapLogin)
	cfg.BootstrapToken = getenv("FABRIKA_BOOTSTRAP_TOKEN", cfg.BootstrapToken)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply DDL on start (true/false)")
	seedDir := flag.String("seed", cfg.SeedDir, "Seed directory with YAML definitions")
	bLogin := flag.String("bootstrap-login", cfg.BootstrapLogin, "Bootstrap owner login")
	bToken := flag.String("bootstrap-token", cfg.BootstrapToken, "Bootstrap owner token")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")
	cfg.SeedDir = strings.TrimSpace(*seedDir)
	cfg.BootstrapLogin = strings.TrimSpace(*bLogin)
	cfg.BootstrapToken = strings.TrimSpace(*bToken)

	return cfg
}
