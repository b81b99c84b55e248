package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/guregu/null/v6"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 비율은 내부적으로 분수(0.05)로 저장, 퍼센트 변환은 출력에서만
// ═══════════════════════════════════════════════════════════

const absent = "n/a"

// formatPercent renders a fraction as a signed percentage
func formatPercent(v null.Float) string {
	if !v.Valid {
		return absent
	}
	return fmt.Sprintf("%+.2f%%", v.Float64*100)
}

// formatRatio renders a plain ratio such as P/E
func formatRatio(v null.Float) string {
	if !v.Valid {
		return absent
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

// formatMoney renders large dollar amounts with an SI suffix
func formatMoney(v null.Float) string {
	if !v.Valid {
		return absent
	}
	value, prefix := humanize.ComputeSI(v.Float64)
	return "$" + humanize.FtoaWithDigits(value, 2) + prefix
}

// formatVolume renders share counts with thousands separators
func formatVolume(v int64) string {
	return humanize.Comma(v)
}

// PrintHeader prints a formatted command header
func PrintHeader(title string, kv ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Printf("  %-10s: %s\n", kv[i], kv[i+1])
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTable prints columns padded to the widest cell
func PrintTable(columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow := func(values []string) {
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		fmt.Println(strings.TrimRight(strings.Join(cells, "  "), " "))
	}

	printRow(columns)
	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	fmt.Println(strings.Repeat("─", total))
	for _, row := range rows {
		printRow(row)
	}
}
