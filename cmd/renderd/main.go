package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/dashlink/internal/reconciler"
	"github.com/example/dashlink/pkg/linkboard"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("DASHLINK_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: DASHLINK_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}

	outputDir := os.Getenv("DASHLINK_OUTPUT_DIR")

	// Leadership is supplied by the deployment, not elected here. A
	// non-leader renderer observes events and acts on none of them.
	leader := true
	if raw := os.Getenv("DASHLINK_LEADER"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid DASHLINK_LEADER: %v\n", err)
			os.Exit(1)
		}
		leader = parsed
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create linkboard client
	client, err := linkboard.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create linkboard client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Renderer starting for instance '%s'\n", instanceName)

	// 5. Create renderer engine
	engine := reconciler.NewEngine(client, instanceName, outputDir, func() bool { return leader })

	// 6. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 7. Start engine in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(runCtx)
	}()

	// 8. Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Renderer error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Renderer stopped")
}
