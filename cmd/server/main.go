package main

import (
	"context"
	"fmt"
	"log"

	"fabrika/internal/api"
	"fabrika/internal/config"
	"fabrika/internal/seed"
	"fabrika/internal/store"
	"fabrika/internal/store/memory"
	"fabrika/internal/store/pg"
)

func main() {
	cfg := config.LoadWithPath("config.json")

	// 1. Хранилище: Postgres при заданном DBURL, иначе in-memory
	var st store.Store
	if cfg.DBURL != "" {
		pgStore, err := pg.Open(cfg.DBURL)
		if err != nil {
			log.Fatalf("Ошибка подключения к Postgres: %v", err)
		}
		if cfg.AutoMigrate {
			if err := pg.EnsureSchema(pgStore.DB()); err != nil {
				log.Fatalf("Ошибка миграции: %v", err)
			}
		}
		st = pgStore
		fmt.Println("Хранилище: Postgres")
	} else {
		st = memory.New()
		fmt.Println("Хранилище: in-memory")
	}
	defer st.Close()

	ctx := context.Background()

	// 2. Bootstrap-владелец с фиксированным токеном (для локальной работы)
	if cfg.BootstrapLogin != "" {
		if _, err := st.EnsureOwner(ctx, cfg.BootstrapLogin, cfg.BootstrapToken); err != nil {
			log.Fatalf("Ошибка bootstrap-владельца: %v", err)
		}
		fmt.Printf("Bootstrap-владелец: %s\n", cfg.BootstrapLogin)
	}

	// 3. Seed-определения endpoint'ов
	if cfg.SeedDir != "" {
		if err := seed.Apply(ctx, st, cfg.SeedDir); err != nil {
			log.Fatalf("Ошибка seed: %v", err)
		}
	}

	// 4. REST API сервер
	fmt.Printf("Стартуем сервер Fabrika на :%s...\n", cfg.Port)
	if err := api.RunServer(":"+cfg.Port, st); err != nil {
		log.Fatalf("Ошибка сервера: %v", err)
	}
}
