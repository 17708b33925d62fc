package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/go-analyze/charts"
)

var errNoUsage = errors.New("no usage to chart")

// GenerateUsageChart creates a pie chart of the money sent this month against what
// is left under the monthly limit. Returns PNG image as bytes.
func GenerateUsageChart(used, remaining models.Money, tier models.VerificationTier) ([]byte, error) {
	if used.IsZero() {
		return nil, errNoUsage
	}

	values := []float64{used.Amount.InexactFloat64(), remaining.Amount.InexactFloat64()}
	names := []string{
		fmt.Sprintf("Sent (%s)", used),
		fmt.Sprintf("Remaining (%s)", remaining),
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Monthly limit usage - %s tier", tier),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// generateChartFilename creates filename like "limits_2026-03.png".
func generateChartFilename(now time.Time) string {
	return fmt.Sprintf("limits_%s.png", now.Format("2006-01"))
}
