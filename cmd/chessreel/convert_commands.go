package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newGIFCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var uuidFlag string
	var nameFlag string
	var flippedFlag bool

	cmd := &cobra.Command{
		Use:   "gif <pgn-file>",
		Short: "Submit game notation for GIF and video conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userFlag) == "" {
				return fmt.Errorf("--user is required")
			}
			notation, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read notation file: %w", err)
			}

			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			client := newAPIClient(baseURL)

			job, err := client.createJob("gif", uuidFlag, userFlag)
			if err != nil {
				return err
			}
			objectPath, err := client.createGIF(job.UUID, userFlag, string(notation), nameFlag, flippedFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted job %s\n", job.UUID)
			fmt.Fprintf(out, "Board GIF stored at %s; conversion runs in the background.\n", objectPath)
			fmt.Fprintf(out, "Track progress with: chessreel show gif %s\n", job.UUID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Owner of the conversion job")
	cmd.Flags().StringVar(&uuidFlag, "uuid", "", "Job UUID (generated when omitted)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Output file name without extension")
	cmd.Flags().BoolVar(&flippedFlag, "flipped", false, "Render the board from Black's side")
	return cmd
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var uuidFlag string
	var extractFlag bool

	cmd := &cobra.Command{
		Use:   "upload <video-file>",
		Short: "Upload a recorded game video for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if extractFlag && strings.TrimSpace(userFlag) == "" {
				return fmt.Errorf("--user is required when --extract-pgn is set")
			}

			baseURL, err := ctx.apiBaseURL()
			if err != nil {
				return err
			}
			job, err := newAPIClient(baseURL).uploadVideo(args[0], uuidFlag, userFlag, extractFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded job %s (%s)\n", job.UUID, job.Kind)
			fmt.Fprintf(out, "Track progress with: chessreel show %s %s\n", job.Kind, job.UUID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Owner of the conversion job")
	cmd.Flags().StringVar(&uuidFlag, "uuid", "", "Job UUID (generated when omitted)")
	cmd.Flags().BoolVar(&extractFlag, "extract-pgn", false, "Recover game notation from the video")
	return cmd
}
