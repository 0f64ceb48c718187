package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// printPlain reports demo progress as plain lines when stdout is not a
// terminal.
func printPlain(msg tea.Msg) {
	switch msg := msg.(type) {
	case loadDoneMsg:
		fmt.Printf("✓ Loaded %d points in %v (%.0f points/s)\n",
			msg.points, msg.elapsed.Round(time.Millisecond), float64(msg.points)/msg.elapsed.Seconds())
	case presetStartedMsg:
		fmt.Printf("• Comparing strategies on the %s region\n", string(msg))
	case presetDoneMsg:
		c := msg.cmp
		fmt.Printf("  keyrange %d points in %.3fms over %d ranges, bbox %d points in %.3fms, %d false positives, %d false negatives\n",
			c.KeyRangeCount, c.KeyRangeMs, c.Ranges, c.BoundingBoxCount, c.BoundingBoxMs, c.FalsePositives, c.FalseNegatives)
	case errMsg:
		fmt.Printf("✗ %v\n", msg.err)
	case doneMsg:
		fmt.Println("✓ Done")
	}
}
