// Package app assembles the linking service from the process configuration.
// The HTTP server and the queue worker share it.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gryn010/inception/internal/config"
	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/linking/feature"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/store"
	"github.com/gryn010/inception/pkg/store/cache"
	pgxstore "github.com/gryn010/inception/pkg/store/pgx"
)

type Params struct {
	Pool   *pgxpool.Pool
	Config *config.Linking
	// Redis is optional. Without it remote knowledge bases are not cached.
	Redis *redis.Client
	// Objects is only needed when the stopword list lives in S3.
	Objects storage.ObjectStore
	Metrics *linking.Metrics
}

type Linking struct {
	Service *linking.Service
	// Store owns the remote knowledge base pools and must be closed.
	Store *pgxstore.KnowledgeBaseStore
}

func NewLinking(ctx context.Context, p Params) (*Linking, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("linking config is required")
	}

	kbStore := pgxstore.NewKnowledgeBaseStore(p.Pool)

	var labels store.KnowledgeBaseStore = kbStore
	if p.Redis != nil {
		labels = cache.New(kbStore, p.Redis, p.Config.CacheTTL)
	}

	stopwords, err := LoadStopwords(ctx, p.Objects, p.Config.Stopwords)
	if err != nil {
		return nil, err
	}

	generators := feature.Baseline(kbStore)
	if err := generators.Configure(p.Config.GeneratorOverrides()); err != nil {
		return nil, fmt.Errorf("failed to configure feature generators: %w", err)
	}

	svc, err := linking.NewService(linking.NewServiceParams{
		Store:      labels,
		Registry:   kbStore,
		Properties: p.Config.Properties(),
		Stopwords:  stopwords,
		Generators: generators.Resolve(),
		Metrics:    p.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[App] Linking service ready",
		"generators", generators.Names(),
		"stopwords", stopwords.Len(),
		"cache", p.Redis != nil,
	)
	return &Linking{Service: svc, Store: kbStore}, nil
}

// LoadStopwords reads the stopword list from a local file or an s3:// key.
// An empty source yields an empty set.
func LoadStopwords(ctx context.Context, objects storage.ObjectStore, source string) (linking.StopwordSet, error) {
	if source == "" {
		return linking.StopwordSet{}, nil
	}

	rc, err := storage.OpenSource(ctx, objects, source)
	if err != nil {
		return linking.StopwordSet{}, fmt.Errorf("failed to open stopwords: %w", err)
	}
	defer rc.Close()

	set, err := linking.LoadStopwords(rc)
	if err != nil {
		return linking.StopwordSet{}, fmt.Errorf("failed to read stopwords from %s: %w", source, err)
	}
	return set, nil
}

// NewRedisClient connects to REDIS_URL. An empty url disables the cache.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}
