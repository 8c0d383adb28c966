package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vetclinic/consumer"
	"vetclinic/fixtures"
	"vetclinic/services"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()
			logger.Println("Migrations applied")
			return nil
		},
	}
}

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume clinic events and refresh the search index and caches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.KafkaBroker == "" {
				return errors.New("KAFKA_BROKER is not set")
			}

			var indexer consumer.ServiceIndexer
			if index := a.serviceIndex(ctx); index != nil {
				indexer = index
			}
			c := consumer.NewClinicConsumer(a.repo, a.cache, indexer, consumer.Options{
				Broker: a.cfg.KafkaBroker,
				Topic:  a.cfg.KafkaTopic,
				Group:  a.cfg.KafkaGroup,
			})
			defer c.Stop()

			logger.Printf("Consuming %s as %s", a.cfg.KafkaTopic, a.cfg.KafkaGroup)
			c.Run(ctx)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixtures (the bundled demo data by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			var f fixtures.YAMLFixtures
			if file != "" {
				f, err = fixtures.Load(file)
			} else {
				f, err = fixtures.Demo()
			}
			if err != nil {
				return err
			}
			counts, err := fixtures.Apply(cmd.Context(), a.repo.DB(), f)
			if err != nil {
				return err
			}
			a.cache.InvalidateHome(cmd.Context())
			logger.Printf("Fixtures loaded: %v", counts)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixtures file")
	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the service search index from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			index := a.serviceIndex(ctx)
			if index == nil {
				return errors.New("elasticsearch is not available")
			}
			all, err := a.repo.AllServices(ctx)
			if err != nil {
				return err
			}
			n, err := index.Reindex(ctx, all)
			if err != nil {
				return err
			}
			logger.Printf("Indexed %d service(s)", n)
			return nil
		},
	}
}

func newRemindCmd() *cobra.Command {
	var daemon bool
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Text clients about tomorrow's confirmed appointments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			reminders := services.NewReminderService(a.repo, a.sender(), a.cfg.Location)
			if !daemon {
				result, err := reminders.SendDailyReminders(cmd.Context())
				if err != nil {
					return err
				}
				logger.Printf("Reminders: %d sent, %d failed, %d skipped", result.Sent, result.Failed, result.Skipped)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := reminders.StartScheduler(a.cfg.ReminderSchedule); err != nil {
				return err
			}
			defer reminders.Stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep running and send reminders on REMINDER_SCHEDULE")
	return cmd
}
