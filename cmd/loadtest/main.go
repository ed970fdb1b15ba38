package main

import (
	"flag"
	"fmt"
	"log"
	"time"
)

func main() {
	config := &LoadTestConfig{}

	flag.StringVar(&config.BaseURL, "url", "http://localhost:8080", "Base URL of the star notary service")
	flag.IntVar(&config.ConcurrentUsers, "users", 100, "Number of concurrent buyers")
	flag.IntVar(&config.TestDurationSeconds, "duration", 60, "Test duration in seconds")
	flag.IntVar(&config.RampUpSeconds, "ramp-up", 10, "Seconds over which buyers are started")
	flag.IntVar(&config.StarCount, "stars", 1000, "Number of stars to mint and list")
	flag.Int64Var(&config.FirstStarID, "first-id", time.Now().Unix()*1000, "Id of the first seeded star")
	flag.Int64Var(&config.StartingFunds, "funds", 1_000_000, "Funds deposited for every buyer")
	profile := flag.String("profile", "", "Preset: light, heavy or stress")
	flag.Parse()

	switch *profile {
	case "light":
		config.ConcurrentUsers = 50
		config.TestDurationSeconds = 30
	case "heavy":
		config.ConcurrentUsers = 500
		config.TestDurationSeconds = 300
	case "stress":
		config.ConcurrentUsers = 1000
		config.TestDurationSeconds = 600
		config.StarCount = 100
	}

	if config.ConcurrentUsers <= 0 || config.StarCount <= 0 {
		log.Fatalf("users and stars must be positive")
	}

	loadTester := NewLoadTester(config)

	fmt.Printf("Configuration:\n")
	fmt.Printf("- Base URL: %s\n", config.BaseURL)
	fmt.Printf("- Concurrent Users: %d\n", config.ConcurrentUsers)
	fmt.Printf("- Test Duration: %d seconds\n", config.TestDurationSeconds)
	fmt.Printf("- Ramp Up: %d seconds\n", config.RampUpSeconds)
	fmt.Printf("- Stars: %d starting at id %d\n", config.StarCount, config.FirstStarID)
	fmt.Printf("\nSeeding stars and funds...\n")

	if err := loadTester.Setup(); err != nil {
		log.Fatalf("Setup failed: %v", err)
	}

	fmt.Printf("\nStarting test...\n\n")

	metrics := loadTester.Run()

	metrics.PrintReport()

	for _, e := range loadTester.TopErrors(5) {
		fmt.Printf("- %s\n", e)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("load_test_results_%s.json", timestamp)
	if err := metrics.SaveToFile(filename); err != nil {
		log.Printf("Failed to save results to file: %v", err)
	} else {
		fmt.Printf("Results saved to: %s\n", filename)
	}
}
