package cli

import (
	"fmt"

	"github.com/smallbiznis/commission/internal/classification"
	"github.com/smallbiznis/commission/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type normalizedValue struct {
	Raw   string `json:"raw"`
	Group string `json:"group"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <classification>...",
		Short: "Show the category group each classification lands in",
		Long: `Show the category group each raw classification code or name lands in,
using the merge groups of the active commission rules file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, err := loadCommissionConfig(rootOpts)
			if err != nil {
				return err
			}
			normalizer := classification.New(holder.Get().Classification)

			values := make([]normalizedValue, 0, len(args))
			for _, raw := range args {
				values = append(values, normalizedValue{Raw: raw, Group: normalizer.Normalize(raw)})
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return formatter.JSON(values)
			}
			for _, v := range values {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%q\t%s\n", v.Raw, v.Group); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func loadCommissionConfig(opts *RootOptions) (*config.CommissionConfigHolder, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.Load().CommissionConfigPath
	}
	if path == "" {
		return config.NewStaticCommissionConfigHolder(config.DefaultCommissionConfig()), nil
	}
	return config.NewCommissionConfigHolder(config.Config{CommissionConfigPath: path}, zap.NewNop())
}
