package cli

import (
	"fmt"
	"strconv"
	"strings"

	"exam-judge-service/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(18)
	valueStyle = lipgloss.NewStyle().Bold(true)
	headStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// NewReportCmd prints the analytics dashboard to the terminal.
func NewReportCmd(e *env) *cobra.Command {
	var (
		days    int
		buckets int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the analytics summary, score trend and histogram",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			service := newService(e.cfg, e.logger, b, nil)
			summary, err := service.AnalyticsSummary(cmd.Context())
			if err != nil {
				return err
			}
			if days <= 0 {
				days = e.cfg.Exam.TrendDays
			}
			trend, err := service.ScoreTrend(cmd.Context(), days)
			if err != nil {
				return err
			}
			hist, err := service.ScoreHistogram(cmd.Context(), buckets)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(summary, trend, hist))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "trend window in days (default exam.trend_days)")
	cmd.Flags().IntVar(&buckets, "buckets", 10, "histogram buckets")
	return cmd
}

func renderReport(summary domain.Summary, trend domain.Trend, hist []int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Exam analytics"))
	sb.WriteString("\n")

	overview := []string{
		line("attempts", strconv.Itoa(summary.TotalAttempts)),
		line("average score", fmt.Sprintf("%.2f", summary.AvgScore)),
		line("median score", fmt.Sprintf("%.2f", summary.MedianScore)),
		line("p90 score", fmt.Sprintf("%.2f", summary.P90Score)),
		line("average duration", fmt.Sprintf("%.0fs", summary.AvgDuration)),
	}
	for _, v := range domain.AllVariants {
		overview = append(overview, line(v.String()+" questions", strconv.Itoa(summary.TypeDistribution[v])))
	}
	sb.WriteString(boxStyle.Render(strings.Join(overview, "\n")))
	sb.WriteString("\n\n")

	rows := make([][]string, 0, len(summary.TopUsers))
	for i, u := range summary.TopUsers {
		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.FormatInt(u.UserID, 10), fmt.Sprintf("%.2f", u.MeanScore), strconv.Itoa(u.AttemptCount)})
	}
	sb.WriteString(renderTable("Top users", []string{"#", "user", "mean", "attempts"}, rows))

	rows = rows[:0]
	for i, d := range trend.Dates {
		rows = append(rows, []string{d, fmt.Sprintf("%.2f", trend.AvgScores[i])})
	}
	sb.WriteString(renderTable("Score trend", []string{"day", "avg score"}, rows))

	sb.WriteString(titleStyle.Render("Score histogram"))
	sb.WriteString("\n")
	peak := 0
	for _, n := range hist {
		if n > peak {
			peak = n
		}
	}
	for i, n := range hist {
		width := 0
		if peak > 0 {
			width = n * 30 / peak
		}
		fmt.Fprintf(&sb, "%3d %s %d\n", i, barStyle.Render(strings.Repeat("█", width)), n)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func line(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func renderTable(title string, headers []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
	if len(rows) == 0 {
		sb.WriteString(cellStyle.Render("no data"))
		sb.WriteString("\n\n")
		return sb.String()
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	for i, h := range headers {
		sb.WriteString(headStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
