package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/magus-names/magus/pkg/models"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		gender   string
		length   string
		count    int
		minScore float64
		noPron   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "generate <culture>",
		Short: "Generate names for a culture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			req := models.GenerationRequest{
				Culture: args[0],
				Gender:  models.Gender(gender),
				Length:  models.Length(length),
				Count:   count,
			}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}
			if noPron {
				include := false
				req.IncludePronunciation = &include
			}

			resp, err := a.svc.GenerateNames(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(os.Stdout, resp)
			}
			return printNames(os.Stdout, resp)
		},
	}

	cmd.Flags().StringVarP(&gender, "gender", "g", "", "masculine, feminine or neutral")
	cmd.Flags().StringVarP(&length, "length", "l", "", "short, medium or long")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of names (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum pronounceability score (default from config)")
	cmd.Flags().BoolVar(&noPron, "no-pronunciation", false, "omit pronunciations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newRandomCmd(configPath *string) *cobra.Command {
	var (
		gender string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "random [culture]",
		Short: "Generate one name, from a random culture unless one is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			var culture string
			if len(args) == 1 {
				culture = args[0]
			}
			resp, err := a.svc.RandomName(ctx, culture, models.Gender(gender))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(os.Stdout, resp)
			}
			return printNames(os.Stdout, resp)
		},
	}

	cmd.Flags().StringVarP(&gender, "gender", "g", "", "masculine, feminine or neutral")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	var culture string

	cmd := &cobra.Command{
		Use:   "validate <name>",
		Short: "Score how pronounceable a name is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.svc.ValidateName(ctx, args[0], culture)
			if err != nil {
				return err
			}
			return printValidation(os.Stdout, v)
		},
	}

	cmd.Flags().StringVar(&culture, "culture", "", "apply this culture's forbidden clusters")
	return cmd
}

func newCulturesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cultures",
		Short: "List available cultures",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(context.Background(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()
			return printCultures(os.Stdout, a.svc.Cultures())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNames(out io.Writer, resp *models.GenerationResponse) error {
	if len(resp.Names) == 0 {
		fmt.Fprintln(out, "No names met the requested score.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPRONUNCIATION\tSCORE\tCULTURE")
	for _, n := range resp.Names {
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\n", n.Name, n.Pronunciation, n.Score, n.Culture)
	}
	return w.Flush()
}

func printValidation(out io.Writer, v *models.NameValidation) error {
	verdict := "pronounceable"
	if !v.Pronounceable {
		verdict = "hard to pronounce"
	}
	fmt.Fprintf(out, "%s: %s (score %.3f)\n", v.Name, verdict, v.Score)
	fmt.Fprintf(out, "Pronunciation: %s\n", v.Pronunciation)
	if len(v.Issues) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tDETAIL\tPENALTY")
	for _, p := range v.Issues {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", p.Rule, p.Detail, p.Amount)
	}
	return w.Flush()
}

func printCultures(out io.Writer, infos []models.CultureInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tALIASES\tEXAMPLES")
	for _, c := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Code, c.Name, strings.Join(c.Aliases, ","), strings.Join(c.ExampleNames, ", "))
	}
	return w.Flush()
}
