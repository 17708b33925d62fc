//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/deloabass/nigertransfert/internal/bot"
	"github.com/deloabass/nigertransfert/internal/models"
)

func main() {
	chartData, err := bot.GenerateUsageChart(models.EUR("1240.50"), models.EUR("1759.50"), models.TierBasic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Created graph.png - Example monthly limit usage chart")
}
