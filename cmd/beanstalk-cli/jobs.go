package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/proto"
)

var (
	priority       int64
	delay          time.Duration
	ttr            time.Duration
	reserveTimeout time.Duration
	deleteReserved bool
)

func init() {
	putCmd.Flags().Int64VarP(&priority, "priority", "p", proto.DefaultPriority, "Job priority, 0 is most urgent")
	putCmd.Flags().DurationVarP(&delay, "delay", "d", proto.DefaultDelay, "Delay before the job becomes ready")
	putCmd.Flags().DurationVar(&ttr, "ttr", proto.DefaultTTR, "Time to run once reserved")

	reserveCmd.Flags().DurationVar(&reserveTimeout, "timeout", 0, "Wait at most this long for a job, unset waits forever")
	reserveCmd.Flags().BoolVar(&deleteReserved, "delete", false, "Delete the job once printed")

	releaseCmd.Flags().Int64VarP(&priority, "priority", "p", proto.DefaultPriority, "New job priority")
	releaseCmd.Flags().DurationVarP(&delay, "delay", "d", proto.DefaultDelay, "Delay before the job becomes ready again")

	buryCmd.Flags().Int64VarP(&priority, "priority", "p", proto.DefaultPriority, "New job priority")
}

var putCmd = &cobra.Command{
	Use:   "put <data>",
	Short: "Put a job into the tube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context(), tube)
		if err != nil {
			return err
		}
		defer client.Close()

		job, err := client.Put(cmd.Context(), args[0],
			beanstalk.WithPriority(priority),
			beanstalk.WithDelay(delay),
			beanstalk.WithTTR(ttr))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", job.Status, job.ID)
		return nil
	},
}

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Reserve a job from the tube and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := connect(ctx, tube)
		if err != nil {
			return err
		}
		defer client.Close()

		var job beanstalk.Job
		if cmd.Flags().Changed("timeout") {
			job, err = client.ReserveWithTimeout(ctx, reserveTimeout)
		} else {
			job, err = client.Reserve(ctx)
		}
		if err != nil {
			return err
		}

		if !job.Reserved() {
			fmt.Fprintln(cmd.OutOrStdout(), job.Status)
			return nil
		}

		printJob(cmd.OutOrStdout(), job)

		if deleteReserved {
			return client.Delete(ctx, job.ID)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a job",
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

		if err := client.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), proto.StatusDeleted)
		return nil
	},
}

// withReservedJob reserves the job by id on a fresh connection, so that
// commands restricted to the reserving client can act on it.
func withReservedJob(cmd *cobra.Command, arg string, fn func(client *beanstalk.Client, id uint64) (string, error)) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := connect(ctx, tube)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.ReserveJob(ctx, id); err != nil {
		return err
	}

	status, err := fn(client, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
	return nil
}

var releaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Reserve a job by id and release it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReservedJob(cmd, args[0], func(client *beanstalk.Client, id uint64) (string, error) {
			return client.Release(cmd.Context(), id, beanstalk.WithPriority(priority), beanstalk.WithDelay(delay))
		})
	},
}

var buryCmd = &cobra.Command{
	Use:   "bury <id>",
	Short: "Reserve a job by id and bury it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReservedJob(cmd, args[0], func(client *beanstalk.Client, id uint64) (string, error) {
			return proto.StatusBuried, client.Bury(cmd.Context(), id, beanstalk.WithPriority(priority))
		})
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch <id>",
	Short: "Reserve a job by id and touch it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReservedJob(cmd, args[0], func(client *beanstalk.Client, id uint64) (string, error) {
			return proto.StatusTouched, client.Touch(cmd.Context(), id)
		})
	},
}

var kickCmd = &cobra.Command{
	Use:   "kick <bound>",
	Short: "Kick up to bound buried or delayed jobs of the tube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bound, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid bound %q", args[0])
		}

		client, err := connect(cmd.Context(), tube)
		if err != nil {
			return err
		}
		defer client.Close()

		n, err := client.Kick(cmd.Context(), bound)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", proto.StatusKicked, n)
		return nil
	},
}

var kickJobCmd = &cobra.Command{
	Use:   "kick-job <id>",
	Short: "Kick a buried or delayed job",
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

		if err := client.KickJob(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), proto.StatusKicked)
		return nil
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek <id|ready|delayed|buried>",
	Short: "Show a job without reserving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := connect(ctx, tube)
		if err != nil {
			return err
		}
		defer client.Close()

		var job beanstalk.Job
		switch args[0] {
		case "ready":
			job, err = client.PeekReady(ctx)
		case "delayed":
			job, err = client.PeekDelayed(ctx)
		case "buried":
			job, err = client.PeekBuried(ctx)
		default:
			var id uint64
			if id, err = parseID(args[0]); err == nil {
				job, err = client.Peek(ctx, id)
			}
		}
		if err != nil {
			return err
		}

		printJob(cmd.OutOrStdout(), job)
		return nil
	},
}
