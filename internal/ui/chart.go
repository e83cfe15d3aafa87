// Package ui renders bars and indicator state for the terminal.
package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/types"
)

// ANSI escape codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

const (
	minCandles   = 20
	maxCandles   = 100
	axisWidth    = 12
	defaultWidth = 80
)

// Chart draws an ASCII candlestick chart with the latest Bollinger bands
// and a one-line indicator summary.
type Chart struct {
	Height int
	Width  int
	Color  bool
}

// NewChart sizes the chart for w. Color and terminal width are used only
// when w is a terminal.
func NewChart(w io.Writer) *Chart {
	c := &Chart{Height: 12, Width: defaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.Color = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			c.Width = width
		}
	}
	return c
}

func (c *Chart) paint(color, s string) string {
	if !c.Color {
		return s
	}
	return color + s + ColorReset
}

func (c *Chart) candleCount(n int) int {
	limit := c.Width - axisWidth
	limit = min(max(limit, minCandles), maxCandles)
	return min(n, limit)
}

// Render returns the chart lines: a header, the price rows, the axis and
// the indicator summary.
func (c *Chart) Render(symbol string, bars []types.Bar, row indicator.Row, dir types.Direction) []string {
	lines := []string{c.paint(ColorBold+ColorCyan, fmt.Sprintf("%s  %d bars", symbol, len(bars)))}

	bars = bars[len(bars)-c.candleCount(len(bars)):]
	lines = append(lines, c.renderChart(bars, row)...)
	lines = append(lines, c.statsLine(row, dir))
	return lines
}

// Write renders the chart to w.
func (c *Chart) Write(w io.Writer, symbol string, bars []types.Bar, row indicator.Row, dir types.Direction) error {
	for _, line := range c.Render(symbol, bars, row, dir) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chart) statsLine(row indicator.Row, dir types.Direction) string {
	if !row.Ready() {
		return c.paint(ColorDim, "indicators not ready")
	}

	signal := c.paint(ColorDim, dir.Label())
	switch dir {
	case types.DirectionCall:
		signal = c.paint(ColorGreen, dir.Label())
	case types.DirectionPut:
		signal = c.paint(ColorRed, dir.Label())
	}

	label := func(s string) string { return c.paint(ColorBold, s) }
	return fmt.Sprintf("%s %.1f │ %s %.1f │ %s %.2f │ %s %.2f │ %s %s",
		label("RSI2:"), row.RSI,
		label("Stoch:"), row.StochK,
		label("BB pos:"), row.BollingerPosition(),
		label("Vol ratio:"), row.VolumeRatio(),
		label("Signal:"), signal)
}

func (c *Chart) renderChart(bars []types.Bar, row indicator.Row) []string {
	height := max(c.Height, 2)
	if len(bars) < 2 {
		lines := make([]string, height, height+1)
		for i := range lines {
			lines[i] = c.paint(ColorDim, strings.Repeat(" ", axisWidth-1)+"│")
		}
		return append(lines, c.paint(ColorDim, strings.Repeat(" ", axisWidth-1)+"└"))
	}

	minPrice, maxPrice := bars[0].Low, bars[0].High
	for _, b := range bars {
		minPrice = math.Min(minPrice, b.Low)
		maxPrice = math.Max(maxPrice, b.High)
	}
	bands := row.Ready()
	if bands {
		minPrice = math.Min(minPrice, row.BBLower)
		maxPrice = math.Max(maxPrice, row.BBUpper)
	}

	priceRange := maxPrice - minPrice
	if priceRange == 0 {
		priceRange = math.Max(math.Abs(maxPrice)*0.001, 1e-6)
	}
	padding := priceRange * 0.05
	minPrice -= padding
	priceRange += 2 * padding

	width := len(bars)
	chart := make([][]rune, height)
	colors := make([][]string, height)
	for i := range chart {
		chart[i] = make([]rune, width)
		colors[i] = make([]string, width)
		for j := range chart[i] {
			chart[i][j] = ' '
		}
	}

	if bands {
		for _, level := range []float64{row.BBUpper, row.BBLower} {
			y := priceToY(level, minPrice, priceRange, height)
			for x := range chart[y] {
				chart[y][x] = '·'
				colors[y][x] = ColorYellow
			}
		}
	}

	for x, bar := range bars {
		color := ColorRed
		if bar.Close >= bar.Open {
			color = ColorGreen
		}

		highY := priceToY(bar.High, minPrice, priceRange, height)
		lowY := priceToY(bar.Low, minPrice, priceRange, height)
		bodyTop := priceToY(math.Max(bar.Open, bar.Close), minPrice, priceRange, height)
		bodyBottom := priceToY(math.Min(bar.Open, bar.Close), minPrice, priceRange, height)

		for y := highY; y <= lowY; y++ {
			chart[y][x] = '│'
			colors[y][x] = color
		}
		for y := bodyTop; y <= bodyBottom; y++ {
			chart[y][x] = '█'
			colors[y][x] = color
		}
	}

	labelEvery := max(height/4, 1)
	lines := make([]string, 0, height+1)
	for y := 0; y < height; y++ {
		var sb strings.Builder

		if y%labelEvery == 0 {
			sb.WriteString(c.paint(ColorDim, fmt.Sprintf("%*.5f │", axisWidth-2, yToPrice(y, minPrice, priceRange, height))))
		} else {
			sb.WriteString(c.paint(ColorDim, strings.Repeat(" ", axisWidth-1)+"│"))
		}

		for x := 0; x < width; x++ {
			if colors[y][x] == "" {
				sb.WriteRune(chart[y][x])
				continue
			}
			sb.WriteString(c.paint(colors[y][x], string(chart[y][x])))
		}
		lines = append(lines, sb.String())
	}

	lines = append(lines, c.paint(ColorDim, strings.Repeat(" ", axisWidth-1)+"└"+strings.Repeat("─", width)))
	return lines
}

// priceToY maps a price to a row, 0 at the top.
func priceToY(price, minPrice, priceRange float64, height int) int {
	normalized := (price - minPrice) / priceRange
	y := height - 1 - int(math.Round(normalized*float64(height-1)))
	return min(max(y, 0), height-1)
}

func yToPrice(y int, minPrice, priceRange float64, height int) float64 {
	if height <= 1 {
		return minPrice
	}
	return minPrice + priceRange*float64(height-1-y)/float64(height-1)
}
