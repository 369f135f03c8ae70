package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/proto"
)

var allServers bool

func init() {
	statsCmd.Flags().BoolVar(&allServers, "all", false, "Show the stats of every server of BEANSTALK_SERVERS")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if !allServers {
			client, err := connect(ctx, tube)
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(out, stats)
			return nil
		}

		var errs error
		for _, addr := range conf.Servers {
			stats, err := serverStats(cmd, addr)
			if err != nil {
				log.Warn("Failed to get server stats", zap.String("server", addr), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
				continue
			}

			fmt.Fprintf(out, "# %s\n", addr)
			printStats(out, stats)
		}
		return errs
	},
}

func serverStats(cmd *cobra.Command, addr string) (beanstalk.Stats, error) {
	client, err := beanstalk.Dial(cmd.Context(), addr, clientConfig())
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.Stats(cmd.Context())
}

var statsJobCmd = &cobra.Command{
	Use:   "stats-job <id>",
	Short: "Show job statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := connect(cmd.Context(), tube)
		if err != nil {
			return err
		}
		defer client.Close()

		stats, err := client.StatsJob(cmd.Context(), id)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var statsTubeCmd = &cobra.Command{
	Use:   "stats-tube [name]",
	Short: "Show tube statistics, of the --tube tube by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := tube
		if len(args) == 1 {
			name = args[0]
		}

		client, err := connect(cmd.Context(), name)
		if err != nil {
			return err
		}
		defer client.Close()

		stats, err := client.StatsTube(cmd.Context(), name)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var listTubesCmd = &cobra.Command{
	Use:   "list-tubes",
	Short: "List the tubes of the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context(), tube)
		if err != nil {
			return err
		}
		defer client.Close()

		tubes, err := client.ListTubes(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range tubes {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

var pauseTubeCmd = &cobra.Command{
	Use:   "pause-tube <name> <delay>",
	Short: "Pause reservations from a tube",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid delay %q: %w", args[1], err)
		}

		client, err := connect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.PauseTube(cmd.Context(), args[0], d); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), proto.StatusPaused)
		return nil
	},
}
