// Command userscli is a line-driven console for the user registry. Plain
// lines edit the search box; lines starting with ':' are commands.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wenlock/internal/client"
	"wenlock/internal/config"
	"wenlock/internal/listview"
	"wenlock/internal/models"
	"wenlock/internal/validation"
	"wenlock/pkg/rabbitmq"
)

func main() {
	var (
		watch   = flag.Bool("watch", false, "refresh the list when user events arrive on RabbitMQ")
		verbose = flag.Bool("v", false, "log debug output to stderr")
	)
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	api := client.New(cfg.APIURL, client.WithTimeout(cfg.RequestTimeout), client.WithLogger(logger))

	con := newConsole(os.Stdout)
	list := listview.New(api,
		listview.WithQuietPeriod(cfg.SearchDebounce),
		listview.WithPageSize(cfg.PageSize),
		listview.WithOnChange(con.onChange),
		listview.WithLogger(logger),
	)
	defer list.Close()

	con.list = list
	con.api = api
	con.mutator = listview.NewMutator(api, list, validation.New(), logger)

	if *watch {
		if cfg.RabbitMQURL == "" {
			log.Fatalf("-watch needs RABBITMQ_URL")
		}
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange, Logger: logger})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mq.Close()

		err = mq.ConsumeUserEvents(func(event models.UserEvent) error {
			logger.Debug("user event", zap.String("type", event.Type), zap.String("user_id", event.UserID))
			list.Refresh()
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go con.renderLoop(ctx)
	if err := con.run(ctx, os.Stdin); err != nil {
		log.Printf("console stopped: %v", err)
	}
}
