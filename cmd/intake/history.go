package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cvscanner/internal/dto"
)

func newHistoryCmd() *cobra.Command {
	var (
		name   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List accepted intakes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := openServices()
			if err != nil {
				return err
			}
			defer services.Close()

			intakes, err := services.IntakeRepo.GetAll(&dto.IntakeFilters{Name: name, Limit: limit, Offset: offset})
			if err != nil {
				return fmt.Errorf("list intakes: %w", err)
			}
			if outputJSON {
				return printJSON(intakes)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPAGES\tCONFIDENCE\tCREATED")
			for _, in := range intakes {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\n", in.ID, in.FullName, in.PageCount,
					in.Confidence, in.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filter by candidate name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of intakes")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of intakes to skip")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one accepted intake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := uuid.Parse(id); err != nil {
				return fmt.Errorf("invalid intake id: %w", err)
			}

			services, err := openServices()
			if err != nil {
				return err
			}
			defer services.Close()

			intake, err := services.IntakeRepo.GetByID(id)
			if err != nil {
				return fmt.Errorf("load intake: %w", err)
			}
			if intake == nil {
				return fmt.Errorf("intake %s not found", id)
			}
			pages, err := services.ImageRepo.GetByIntakeID(id)
			if err != nil {
				return fmt.Errorf("load pages: %w", err)
			}

			if outputJSON {
				return printJSON(dto.IntakeDetail{Intake: *intake, Pages: pages})
			}

			fmt.Printf("Intake %s (%s)\n\n", intake.ID, intake.CreatedAt.Format("2006-01-02 15:04"))
			printResult(&intake.Result)
			fmt.Println("\nPages:")
			for _, p := range pages {
				fmt.Printf("  %2d. %s (%s, %d bytes)\n", p.Position+1, p.FilePath, p.SourceType, p.FileSize)
			}
			return nil
		},
	}
}
