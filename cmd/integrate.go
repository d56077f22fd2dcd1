package cmd

import (
	"math"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CraigKelly/moonflow/evidence"
	"github.com/CraigKelly/moonflow/model"
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Integrate a 2D target on a grid as an evidence cross-check",
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, err := newStartupParams(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer sp.Close()
		return GridIntegration(sp)
	},
}

func init() {
	addGridFlags(integrateCmd.Flags())
	rootCmd.AddCommand(integrateCmd)
}

func addGridFlags(fs *pflag.FlagSet) {
	fs.Float64("grid-min", evidence.GridMin, "Lower bound of the integration grid on both axes")
	fs.Float64("grid-max", evidence.GridMax, "Upper bound of the integration grid on both axes")
	fs.Int("grid-n", evidence.GridPoints, "Grid points per axis")
}

type gridTrace struct {
	Target     string  `json:"target"`
	Points     int     `json:"points"`
	Evidence   float64 `json:"evidence"`
	LnEvidence float64 `json:"ln_evidence"`
}

// GridIntegration prints the brute force evidence of the target
func GridIntegration(sp *startupParams) error {
	name := settings.GetString("target")
	target, err := model.NewTarget(name, settings.GetInt("dim"), settings.GetBool("smear-second"))
	if err != nil {
		return err
	}

	lo, hi, n := settings.GetFloat64("grid-min"), settings.GetFloat64("grid-max"), settings.GetInt("grid-n")
	z, err := evidence.GridEvidence(target, lo, hi, n)
	if err != nil {
		return err
	}

	sp.out.Printf("Grid [%s, %s]^2 with %d points per axis\n", formatFloat(lo), formatFloat(hi), n)
	sp.out.Printf("evidence (grid):    %s\n", formatFloat(z))
	sp.out.Printf("ln evidence (grid): %s\n", formatFloat(math.Log(z)))

	sp.traceJSON(gridTrace{Target: name, Points: n, Evidence: z, LnEvidence: math.Log(z)})
	return nil
}
