package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued jobs",
	Long:  "Consume campaign recalculation and notification jobs from the Redis queue until interrupted.",
	Run:   runQueueWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runQueueWorker(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApp()
	defer cleanup()

	worker := queue.NewWorker(app.queue, queue.WorkerConfig{
		Concurrency:  app.cfg.Queue.Concurrency,
		Backoff:      app.cfg.Queue.Backoff,
		PollTimeout:  app.cfg.Queue.PollTimeout,
		PromoteEvery: app.cfg.Queue.PromoteEvery,
	}, app.metrics)
	service.RegisterJobs(worker, app.campaigns, app.notifications)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("Queue worker failed")
	}
}
