package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panaderia/internal/cart"
	"panaderia/internal/catalog"
	"panaderia/internal/checkout"
	"panaderia/internal/config"
	"panaderia/internal/events"
	httpapi "panaderia/internal/http"
	"panaderia/internal/repository"
	"panaderia/internal/service"

	_ "panaderia/docs"
)

func main() {
	configPath := flag.String("config", config.FindConfig(), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	var (
		products  repository.ProductRepository
		customers repository.CustomerRepository
		orders    repository.OrderRepository
		tx        repository.TxManager
	)
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := repository.ConnectPG(ctx, repository.PGConfig{
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			Database: cfg.Storage.Database,
		})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		store := repository.NewPGStore(pool)
		products = store
		customers = repository.NewPGCustomers(store)
		orders = repository.NewPGOrders(store)
		tx = repository.NewPGTx(pool)
	default:
		store := repository.NewMemoryStore()
		products = store
		customers = repository.NewMemoryCustomers(store)
		orders = repository.NewMemoryOrders(store)
		tx = repository.NewMemoryTx(store)
	}

	var publisher service.Publisher = events.Noop{}
	if cfg.Rabbit.Enabled {
		pub, err := events.Dial(events.Config{
			Host:     cfg.Rabbit.Host,
			Port:     cfg.Rabbit.Port,
			User:     cfg.Rabbit.User,
			Password: cfg.Rabbit.Password,
			VHost:    cfg.Rabbit.VHost,
		})
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	productsSvc := service.NewProductService(products)
	customersSvc := service.NewCustomerService(customers)
	ordersSvc := service.NewOrderService(products, customers, orders, tx, publisher)

	var loader catalog.Loader
	var placer checkout.Placer
	if cfg.Catalog.Mode == "remote" {
		// касса работает против внешнего бэкенда пекарни
		loader = catalog.NewRemoteLoader(cfg.Catalog.BaseURL)
		placer = checkout.NewRemotePlacer(cfg.Catalog.BaseURL)
	} else {
		loader = catalog.NewLocalLoader(products, customers)
		placer = ordersSvc
	}
	cache := catalog.NewCache(loader)

	var sessions cart.Store
	if cfg.Sessions.Backend == "redis" {
		sessions, err = cart.NewRedisSessions(cfg.Sessions.RedisURL, time.Duration(cfg.Sessions.TTLHours)*time.Hour)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
	} else {
		sessions = cart.NewMemorySessions()
	}

	registry := checkout.NewRegistry(placer, cache)
	srv := httpapi.NewServer(productsSvc, customersSvc, ordersSvc, sessions, registry, cache)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
