package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

var headerRow = []interface{}{"Date", "Label", "Amount", "Origin", "Display"}

type movementRow struct {
	core.Movement
	Row int
}

// parseMovementRows converts a values matrix (as returned by the Sheets API)
// into movements. Header and malformed rows are skipped; the row number
// becomes the movement reference.
func parseMovementRows(ctx context.Context, sheet string, values [][]interface{}) []movementRow {
	var out []movementRow
	for i, raw := range values {
		row := i + 1
		cols := toStrings(raw)
		if len(cols) < 4 {
			continue
		}
		date, err := core.ParseDate(cols[0])
		if err != nil {
			if row != 1 {
				slog.DebugContext(ctx, "Skipping sheet row with invalid date", "row", row, "value", cols[0])
			}
			continue
		}
		amount, err := parseAmount(cols[2])
		if err != nil {
			slog.WarnContext(ctx, "Skipping sheet row with invalid amount", "row", row, "value", cols[2])
			continue
		}
		label := cols[1]
		if label == "" {
			continue
		}
		out = append(out, movementRow{
			Row: row,
			Movement: core.Movement{
				Ref:    core.MovementRef(fmt.Sprintf("%s!A%d:E%d", sheet, row, row)),
				Date:   date,
				Amount: amount,
				Label:  label,
				Origin: core.Origin(cols[3]),
			},
		})
	}
	return out
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "€"))
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
