package cmd

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/moonflow/model"
)

var densityCmd = &cobra.Command{
	Use:   "density [coord...]",
	Short: "Evaluate the target log density and gradient",
	Long: `density prints the target log density and its gradient at every point.
Points come from --points (whitespace separated coordinates, dim values per
point) or, without it, from the positional arguments. Put -- before negative
coordinates so they are not read as flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, err := newStartupParams(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer sp.Close()
		return EvaluateDensity(sp, args)
	},
}

func init() {
	densityCmd.Flags().StringP("points", "p", "", "File of points to evaluate")
	rootCmd.AddCommand(densityCmd)
}

// EvaluateDensity prints log p and its gradient for each point
func EvaluateDensity(sp *startupParams, args []string) error {
	dim := settings.GetInt("dim")
	target, err := model.NewTarget(settings.GetString("target"), dim, settings.GetBool("smear-second"))
	if err != nil {
		return err
	}

	var points [][]float64
	if file := settings.GetString("points"); file != "" {
		points, err = model.ReadPointsFile(file, dim)
	} else {
		points, err = model.ReadPoints(strings.Join(args, " "), dim)
	}
	if err != nil {
		return err
	}
	if len(points) < 1 {
		return errors.New("No points to evaluate")
	}

	grad := make([]float64, dim)
	for _, x := range points {
		lp := target.LogProb(x)
		target.Grad(grad, x)
		sp.out.Printf("x=%s logp=%s grad=%s\n", formatVec(x), formatFloat(lp), formatVec(grad))
	}
	return nil
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
