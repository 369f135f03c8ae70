package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/internal/env"
)

var (
	// The tube to use, overrides BEANSTALK_TUBE
	tube string

	conf *env.Config
	log  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "beanstalk-cli",
	Short: "Command line client for beanstalkd",
	Long: `Command line client for beanstalkd

The server is picked among BEANSTALK_SERVERS by hashing the tube name, the
same way beanstalk.DialTube does.

Usage
	beanstalk-cli put --tube emails '{"to":"bob@example.com"}'
	beanstalk-cli reserve --tube emails --timeout 5s --delete

`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if tube == "" {
			tube = conf.Tube
		}

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&tube, "tube", "t", "", "The tube to use (default $BEANSTALK_TUBE)")

	rootCmd.AddCommand(
		putCmd,
		reserveCmd,
		deleteCmd,
		releaseCmd,
		buryCmd,
		touchCmd,
		kickCmd,
		kickJobCmd,
		peekCmd,
		statsCmd,
		statsJobCmd,
		statsTubeCmd,
		listTubesCmd,
		pauseTubeCmd,
	)
}

// connect dials the server owning name, and uses and watches name.
func connect(ctx context.Context, name string) (*beanstalk.Client, error) {
	client, err := beanstalk.DialTube(ctx, conf.Servers, name, nil, clientConfig())
	if err != nil {
		return nil, err
	}
	log.Debug("Connected", zap.String("server", client.Addr()), zap.String("tube", name))
	return client, nil
}

func clientConfig() beanstalk.Config {
	return beanstalk.Config{
		DialTimeout: conf.DialTimeout,
		Logger:      log.Named("client"),
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return id, nil
}

func printJob(w io.Writer, job beanstalk.Job) {
	fmt.Fprintf(w, "id: %d\nstatus: %s\nbody: %s\n", job.ID, job.Status, job.Body)
}

func printStats(w io.Writer, stats beanstalk.Stats) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, _ := stats.String(k)
		fmt.Fprintf(w, "%s: %s\n", k, v)
	}
}
