package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"
	"world-state-engine/internal/core/services/population"
)

func DiffCmd() *cobra.Command {
	var (
		baselinePath string
		currentPath  string
		policyPath   string
		alertRatio   float64
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff two population snapshot files offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := readSnapshot(baselinePath)
			if err != nil {
				return err
			}
			current, err := readSnapshot(currentPath)
			if err != nil {
				return err
			}
			if baseline.CityID != current.CityID {
				return fmt.Errorf("snapshots belong to different cities: %q and %q", baseline.CityID, current.CityID)
			}
			if current.Timestamp.Before(baseline.Timestamp) {
				return fmt.Errorf("current snapshot %s precedes baseline %s", current.Timestamp, baseline.Timestamp)
			}

			ratio := alertRatio
			if policyPath != "" {
				policy, err := config.LoadPolicy(policyPath)
				if err != nil {
					return err
				}
				ratio = policy.Population.AlertRatio
			}

			diff := population.Diff(*baseline, *current, decimal.NewFromFloat(ratio))
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(diff)
			}
			printDiff(out, diff)
			return nil
		},
	}

	cmd.Flags().StringVar(&baselinePath, "baseline", "", "baseline snapshot JSON file")
	cmd.Flags().StringVar(&currentPath, "current", "", "current snapshot JSON file")
	cmd.Flags().StringVar(&policyPath, "policy", "", "take the alert ratio from this policy file")
	cmd.Flags().Float64Var(&alertRatio, "alert-ratio", 0.2, "NPC/capacity change ratio that raises an alert")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diff as JSON")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("current")

	return cmd
}

func readSnapshot(path string) (*domain.PopulationSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap domain.PopulationSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.CityID == "" {
		return nil, fmt.Errorf("snapshot %s has no cityId", path)
	}
	return &snap, nil
}

func printDiff(w io.Writer, d domain.PopulationDiff) {
	fmt.Fprintf(w, "City %s  %s -> %s\n", d.CityID,
		d.BaselineTs.Format("2006-01-02 15:04"), d.CurrentTs.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  npc delta: %s  capacity delta: %s\n", signed(d.NPCDelta), signed(d.CapacityDelta))

	for _, c := range d.DistrictChanges {
		var tag string
		switch {
		case c.Created:
			tag = okLabel(" [new]")
		case c.Removed:
			tag = failLabel(" [removed]")
		case c.FactionChanged:
			tag = warnLabel(" [faction]")
		}
		fmt.Fprintf(w, "  %-20s npc %s  capacity %s%s\n", c.DistrictID, signed(c.NPCDelta), signed(c.CapacityDelta), tag)
	}

	if len(d.Alerts) == 0 {
		fmt.Fprintln(w, dimLabel("  no alerts"))
	}
	for _, a := range d.Alerts {
		fmt.Fprintf(w, "  %s %s %s\n", warnLabel(string(a.Kind)), a.DistrictID, a.Message)
	}
	for _, e := range d.EventImpacts {
		fmt.Fprintf(w, "  event %s (%s) %s\n", e.Title, e.Category, dimLabel(e.StartsAt.Format("2006-01-02 15:04")))
	}
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
