package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/blobstore/minio"
	"github.com/hupe1980/vecsim/blobstore/s3"
	"github.com/hupe1980/vecsim/config"
	"github.com/hupe1980/vecsim/embed"
	"github.com/hupe1980/vecsim/snapshot"
)

// storeLocation is a parsed VECSIM_STORE_URL.
//
//	mem://
//	file://./data
//	s3://bucket/prefix
//	minio://host:9000/bucket/prefix
type storeLocation struct {
	scheme   string
	endpoint string
	bucket   string
	prefix   string
	path     string
}

func parseStoreURL(raw string) (storeLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return storeLocation{}, fmt.Errorf("store url %q: %w", raw, err)
	}

	loc := storeLocation{scheme: u.Scheme}
	switch u.Scheme {
	case "mem":
	case "file":
		loc.path = u.Host + u.Path
		if loc.path == "" {
			return loc, fmt.Errorf("store url %q: missing path", raw)
		}
	case "s3":
		loc.bucket = u.Host
		loc.prefix = strings.Trim(u.Path, "/")
	case "minio":
		loc.endpoint = u.Host
		parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		loc.bucket = parts[0]
		if len(parts) == 2 {
			loc.prefix = parts[1]
		}
	default:
		return loc, fmt.Errorf("store url %q: unsupported scheme %q", raw, u.Scheme)
	}

	if (loc.scheme == "s3" || loc.scheme == "minio") && loc.bucket == "" {
		return loc, fmt.Errorf("store url %q: missing bucket", raw)
	}
	if loc.prefix != "" {
		loc.prefix += "/"
	}
	return loc, nil
}

// openStore returns the snapshot blob store and its CURRENT pointer.
func openStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, snapshot.Pointer, error) {
	loc, err := parseStoreURL(cfg.StoreURL)
	if err != nil {
		return nil, nil, err
	}

	switch loc.scheme {
	case "mem":
		bs := blobstore.NewMemoryStore()
		return bs, snapshot.NewBlobPointer(bs), nil
	case "file":
		bs := blobstore.NewLocalStore(loc.path)
		return bs, snapshot.NewBlobPointer(bs), nil
	case "minio":
		bs, err := minio.Dial(ctx, loc.endpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioSecure, loc.bucket, loc.prefix)
		if err != nil {
			return nil, nil, err
		}
		return bs, snapshot.NewBlobPointer(bs), nil
	default:
		return openS3(ctx, cfg, loc)
	}
}

func openS3(ctx context.Context, cfg *config.Config, loc storeLocation) (blobstore.BlobStore, snapshot.Pointer, error) {
	opts := []func(*s3.Options){s3.WithPrefix(loc.prefix)}
	if cfg.S3Region != "" {
		opts = append(opts, s3.WithRegion(cfg.S3Region))
	}
	if cfg.S3Endpoint != "" {
		opts = append(opts, s3.WithEndpoint(cfg.S3Endpoint))
	}
	if cfg.S3PathStyle {
		opts = append(opts, s3.WithPathStyle())
	}

	store, err := s3.New(ctx, loc.bucket, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DynamoDBTable == "" {
		return store, snapshot.NewBlobPointer(store), nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	cs := s3.NewCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.StoreURL)
	return cs, cs, nil
}

// newProvider builds the configured embedding provider.
func newProvider(ctx context.Context, cfg *config.Config) (embed.Provider, error) {
	var opts []embed.Option
	if cfg.EmbeddingModel != "" {
		opts = append(opts, embed.WithModel(cfg.EmbeddingModel))
	}
	if cfg.EmbeddingDim > 0 {
		opts = append(opts, embed.WithDimension(cfg.EmbeddingDim))
	}

	var (
		p   embed.Provider
		err error
	)
	switch cfg.Provider {
	case config.ProviderGenAI:
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("GOOGLE_API_KEY is required for the genai provider")
		}
		p, err = embed.NewGenAI(ctx, cfg.GoogleAPIKey, opts...)
	case config.ProviderVertex:
		if cfg.GoogleProject == "" {
			return nil, errors.New("GOOGLE_CLOUD_PROJECT is required for the vertex provider")
		}
		p, err = embed.NewVertexAI(ctx, cfg.GoogleProject, cfg.GoogleLocation, opts...)
	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, embed.WithBaseURL(cfg.OpenAIBaseURL))
		}
		p = embed.NewOpenAI(cfg.OpenAIAPIKey, opts...)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimitRPS))
		}
		p = embed.NewLimited(p, cfg.RateLimitRPS, burst)
	}
	if cfg.EmbedCacheSize > 0 {
		p = embed.NewCached(p, cfg.EmbedCacheSize)
	}
	return p, nil
}

// loadEngine imports the current snapshot, or creates an empty engine when
// none was published yet.
func loadEngine(ctx context.Context, bs blobstore.BlobStore, ptr snapshot.Pointer, opts []vecsim.Option) (*vecsim.Engine, error) {
	e, err := snapshot.LoadCurrent(ctx, bs, ptr, vecsim.Importer(opts...))
	if errors.Is(err, blobstore.ErrNotFound) {
		return vecsim.New(opts...)
	}
	return e, err
}
