package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/dashlink/internal/config"
	"github.com/example/dashlink/internal/printer"
	"github.com/example/dashlink/internal/submitter"
	"github.com/example/dashlink/pkg/linkboard"
)

// connect loads dashlink.yml and opens a linkboard client against the
// configured Redis. Callers own closing the client.
func connect(ctx context.Context) (*config.Config, *linkboard.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, printer.Error(
			"failed to load configuration",
			fmt.Sprintf("Could not load %s: %v", configPath, err),
			[]string{"Point --config at a valid dashlink.yml"},
		)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis_url in %s: %w", configPath, err)
	}

	client, err := linkboard.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create linkboard client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, printer.Error(
			"Redis not accessible",
			fmt.Sprintf("Could not reach %s: %v", cfg.RedisURL, err),
			[]string{"Check that Redis is running and redis_url is correct"},
		)
	}

	return cfg, client, nil
}

// newSubmitter builds the configured application's submitter with status
// changes routed to the terminal.
func newSubmitter(cfg *config.Config, client *linkboard.Client) (*submitter.Submitter, error) {
	identity := linkboard.Identity{
		Environment:     cfg.Environment,
		EnvironmentUUID: cfg.EnvironmentUUID,
		Application:     cfg.Application,
	}

	return submitter.New(client, identity, cfg.Link, cfg.IsLeader, printer.Status)
}
