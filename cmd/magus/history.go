package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/magus-names/magus/pkg/models"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		culture  string
		gender   string
		minScore float64
		since    string
		limit    int
		summary  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previously generated names",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()
			if a.store == nil {
				return errors.New("history store is disabled")
			}

			if summary {
				rows, err := a.store.Summary(ctx)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Println("No usage data found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CULTURE\tNAMES\tAVG SCORE\tUSAGE\tREQUESTS")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\t%s\n",
						r.Culture, humanize.Comma(int64(r.Names)), r.AvgScore,
						humanize.Comma(int64(r.TotalUsage)), humanize.Comma(int64(r.Requests)))
				}
				return w.Flush()
			}

			filter := models.HistoryFilter{
				Culture:  culture,
				Gender:   models.Gender(gender),
				MinScore: minScore,
				Limit:    limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since (use YYYY-MM-DD): %w", err)
				}
				filter.Since = t
			}

			records, err := a.store.History(ctx, filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No names recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCULTURE\tGENDER\tSCORE\tUSES\tFIRST SEEN")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%d\t%s\n",
					r.Name, r.Culture, r.Gender, r.Score, r.UsageCount, humanize.Time(r.CreatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&culture, "culture", "", "filter by culture")
	cmd.Flags().StringVarP(&gender, "gender", "g", "", "filter by gender")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "only names scoring at least this")
	cmd.Flags().StringVar(&since, "since", "", "start date in YYYY-MM-DD format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum names to list")
	cmd.Flags().BoolVar(&summary, "summary", false, "show per-culture totals instead")
	return cmd
}
