package container

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pokedex/catalog/internal/catalog"
	"pokedex/catalog/internal/client"
	"pokedex/catalog/internal/config"
	"pokedex/catalog/internal/loader"
	"pokedex/catalog/internal/proxy"
	"pokedex/catalog/internal/queue"
	"pokedex/catalog/internal/server"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Client  client.PokeAPIClient
	Journal queue.Journal
	Cache   *catalog.Cache
	Index   *catalog.Index
	Loader  *loader.BatchLoader
	Server  *server.Server

	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	proxySupplier := proxy.NewSupplier(ctx, cfg.PokeAPI.Proxies, cfg.PokeAPI.BaseURL)
	container.Client = client.NewPokeAPIClient(cfg.PokeAPI, proxySupplier)

	container.Journal = queue.NopJournal{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis, skipped entries will be journaled")

		container.redis = rdb
		container.Journal = queue.NewRedisJournal(rdb)
	}

	return container.wire(container.Client, container.Journal)
}

// NewWithClient builds a container around an existing remote client.
func NewWithClient(cfg *config.Config, remote client.PokeAPIClient) (*Container, error) {
	container := &Container{
		Config:  cfg,
		Client:  remote,
		Journal: queue.NopJournal{},
	}
	return container.wire(remote, container.Journal)
}

func (c *Container) wire(remote client.PokeAPIClient, journal queue.Journal) (*Container, error) {
	cache, err := catalog.NewCache()
	if err != nil {
		return nil, err
	}
	c.Cache = cache

	index, err := catalog.NewIndex(cache, c.Config.Cache.SearchMemoSize)
	if err != nil {
		return nil, err
	}
	c.Index = index

	c.Loader = loader.NewBatchLoader(cache, remote, journal, loader.Options{
		BatchSize:  c.Config.PokeAPI.BatchSize,
		MaxWorkers: c.Config.PokeAPI.MaxWorkers,
		MaxRetries: c.Config.PokeAPI.MaxRetries,
		RetryWait:  c.Config.PokeAPI.RetryWait,
	})

	c.Server = server.New(cache, index, c.Loader)

	return c, nil
}

// Warm loads the full catalog once
func (c *Container) Warm(ctx context.Context) error {
	if err := c.Loader.LoadAll(ctx); err != nil {
		return fmt.Errorf("failed to warm catalog: %w", err)
	}
	return nil
}

// Run serves the HTTP API while the catalog warms up in the background
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := c.Warm(ctx); err != nil {
			// Warm-up failure leaves the API usable; load-more can retry.
			log.Errorf("❌ %v", err)
		}
		return nil
	})

	g.Go(func() error {
		return c.Server.ListenAndServe(ctx, c.Config.Server.Addr())
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.Index != nil {
		c.Index.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
