package cli

import (
	"encoding/json"
	"fmt"
	"io"

	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
)

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) Summary(summary *aggdomain.Summary) error {
	if f.Format == "json" {
		return f.JSON(summary)
	}

	blended := "-"
	if summary.BlendedRate.Valid {
		blended = summary.BlendedRate.Decimal.String()
	}
	_, err := fmt.Fprintf(f.Writer,
		"run=%s budget=%s mode=%s status=%s users=%d sales_usd=%s sales_local=%s commission=%s blended_rate=%s\n",
		summary.RunID,
		summary.BudgetID,
		summary.Mode,
		summary.Status,
		summary.UsersProcessed,
		summary.TotalSalesUSD.StringFixed(2),
		summary.TotalSalesLocal.StringFixed(2),
		summary.TotalCommission.StringFixed(2),
		blended,
	)
	if err == nil && summary.Message != "" {
		_, err = fmt.Fprintf(f.Writer, "message: %s\n", summary.Message)
	}
	return err
}
