/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jjudge-oj/judge-worker/config"
	"github.com/jjudge-oj/judge-worker/internal/health"
	"github.com/jjudge-oj/judge-worker/internal/judge"
	"github.com/jjudge-oj/judge-worker/internal/mq"
	"github.com/jjudge-oj/judge-worker/internal/progress"
	"github.com/jjudge-oj/judge-worker/internal/sandbox"
	"github.com/jjudge-oj/judge-worker/internal/storage"
	"github.com/jjudge-oj/judge-worker/internal/testdata"
	"github.com/jjudge-oj/judge-worker/internal/worker"
	"github.com/jjudge-oj/judge-worker/internal/workspace"
)

// runCmd starts the judge worker pool plus its health endpoint.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Starts the judge worker pool and health endpoint",
	Long: `Starts the judge worker pool and health endpoint. Usage:

	judge-worker run
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWorker(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "judge-worker: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorker(ctx context.Context) error {
	cfg := config.LoadConfig()
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rawBackend, err := newMQBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("construct queue backend: %w", err)
	}
	backend := mq.New(rawBackend)
	defer backend.Close()

	rawStore, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("construct storage backend: %w", err)
	}
	objectStore := storage.NewStorage(rawStore)
	if err := objectStore.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	executor := sandbox.NewExecutor(cfg.SandboxRuntime, []sandbox.PathMapping{
		{ContainerRoot: cfg.TempDir, HostRoot: cfg.TempDirHost},
		{ContainerRoot: cfg.ProblemDir, HostRoot: cfg.ProblemDirHost},
	})
	ws := workspace.NewManager(cfg.TempDir)
	td := testdata.NewProvider(objectStore, cfg.ProblemDir, cfg.S3.TestDataPrefix)
	redisClient := progress.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	publisher := progress.NewRedisPublisher(redisClient)

	j := judge.New(executor, ws, td, publisher)
	pool := worker.NewPool(backend, j, cfg.SQS.ConsumeQueueName, cfg.SQS.ProduceQueueName, cfg.WorkerConcurrency, cfg.SourceMaxBytes)

	healthServer := health.New(cfg.ServerPort)
	go func() {
		if err := healthServer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "judge-worker: health server: %v\n", err)
		}
	}()

	err = pool.Run(ctx)
	_ = healthServer.Shutdown(context.Background())
	return err
}

func newMQBackend(ctx context.Context, cfg config.Config) (mq.Backend, error) {
	switch cfg.QueueBackend {
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return mq.NewSQSClient(ctx, cfg.AWS)
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinioClient(cfg.Minio)
	case "gcs":
		return storage.NewGCSClient(ctx, cfg.GCS)
	default:
		return storage.NewS3Client(ctx, cfg.AWS, cfg.S3)
	}
}
