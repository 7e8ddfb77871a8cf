package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cvscanner/internal/dto"
	"cvscanner/internal/model"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/pipeline"
	"cvscanner/internal/service/storage"
)

func newSubmitCmd() *cobra.Command {
	var accept bool

	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Submit CV pages from image or PDF files",
		Long: `Submit adds the files as pages in the given order, sends them to the
intake backend and prints the extracted CV. Files that are not JPEG, PNG,
WebP, HEIC or PDF are skipped. With --accept the result is saved to history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			services, err := openServices()
			if err != nil {
				return err
			}
			defer services.Close()

			profile := services.Prober.Probe(ctx, dto.ProbeHints{})
			controller := pipeline.NewController(profile, pipeline.Options{
				Buffer:    storage.NewPageBuffer(cfg.MaxPages, log),
				Sessions:  services.Sessions,
				Selector:  services.Selector,
				Submitter: services.Client,
				Archiver:  services.Archive,
				Logger:    log,
			})
			defer controller.Close()

			files := make([]capture.SelectedFile, 0, len(args))
			for _, path := range args {
				files = append(files, capture.SelectedFile{Name: path, Path: path})
			}

			if _, err := controller.ChooseFiles(ctx); err != nil {
				return err
			}
			state, err := controller.FilesSelected(ctx, files)
			if err != nil {
				return err
			}
			if state.Notice != "" {
				fmt.Println(state.Notice)
			}

			if _, err := controller.Submit(ctx); err != nil {
				return err
			}
			controller.Wait()

			state = controller.State()
			if state.Phase == pipeline.PhaseFailed {
				return fmt.Errorf("submission failed: %s", failureText(state.Failure))
			}

			if outputJSON {
				if err := printJSON(state.Result); err != nil {
					return err
				}
			} else {
				printResult(state.Result)
			}

			if !accept {
				return nil
			}
			state, err = controller.Accept(ctx)
			if err != nil {
				return err
			}
			if state.ArchivedID == "" {
				return fmt.Errorf("intake could not be saved: %s", state.Notice)
			}
			fmt.Printf("Saved as intake %s\n", state.ArchivedID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&accept, "accept", false, "save the result to the intake history")
	return cmd
}

func failureText(failure *model.PipelineError) string {
	if failure == nil {
		return "unknown error"
	}
	return fmt.Sprintf("%s (%s)", failure.Message, failure.Kind)
}

func printResult(result *model.IntakeResult) {
	if result == nil {
		return
	}
	p := result.PersonalInfo
	fmt.Printf("%s\n", p.FullName)
	fmt.Printf("  %s | %s | %s\n", p.Email, p.Phone, p.Location)
	fmt.Printf("Confidence: %.0f%%\n\n", result.ConfidenceScore*100)

	if result.Summary != "" {
		fmt.Printf("%s\n\n", result.Summary)
	}

	fmt.Println("Experience:")
	for _, w := range result.WorkHistory {
		fmt.Printf("  - %s, %s (%s - %s)\n", w.Title, w.Company, w.StartDate, w.EndDate)
	}
	fmt.Println("Education:")
	for _, e := range result.Education {
		fmt.Printf("  - %s, %s %s\n", e.Qualification, e.Institution, e.Year)
	}
	fmt.Printf("Skills: %s\n", strings.Join(result.Skills, ", "))

	if len(result.ImprovementSuggestions) > 0 {
		fmt.Println("Suggestions:")
		for _, s := range result.ImprovementSuggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}
