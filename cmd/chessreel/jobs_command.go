package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var stateFlags []string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			jobs, err := newAPIClient(baseURL).listJobs(kindFlag, stateFlags)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				detail := job.VideoPath
				if job.State == "error" {
					detail = job.ErrorMessage
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.Kind,
					job.UUID,
					job.State,
					detail,
					job.UpdatedAt.Local().Format(time.RFC3339),
				})
			}
			headers := []string{"ID", "Kind", "UUID", "State", "Detail", "Updated"}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(headers, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Filter by job kind (gif, pgn, video)")
	cmd.Flags().StringArrayVar(&stateFlags, "state", nil, "Filter by state (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <uuid>",
		Short: "Show one conversion job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			job, err := newAPIClient(baseURL).getJob(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Kind:       %s\n", job.Kind)
			fmt.Fprintf(out, "UUID:       %s\n", job.UUID)
			fmt.Fprintf(out, "State:      %s\n", job.State)
			if job.UserID != "" {
				fmt.Fprintf(out, "User:       %s\n", job.UserID)
			}
			if job.VideoPath != "" {
				fmt.Fprintf(out, "Video:      %s\n", job.VideoPath)
			}
			if job.PGN != "" {
				fmt.Fprintf(out, "Notation:\n%s\n", job.PGN)
			}
			if len(job.Timestamps) > 0 {
				fmt.Fprintf(out, "Timestamps: %s\n", string(job.Timestamps))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
			}
			fmt.Fprintf(out, "Created:    %s\n", job.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "Updated:    %s\n", job.UpdatedAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}
