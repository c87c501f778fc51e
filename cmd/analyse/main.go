package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"stockadvisor/internal/app"
	"stockadvisor/internal/config"
	"stockadvisor/internal/service"

	"github.com/sirupsen/logrus"
)

func main() {
	file := flag.String("f", "portfolio.json", "portfolio JSON file")
	risk := flag.String("risk", "", "risk profile (Conservative, Moderate, Aggressive); overrides the file")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for market data")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	cfg := config.Load(logger)
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	req, err := readRequest(*file)
	if err != nil {
		logger.Fatalf("read portfolio: %v", err)
	}
	if *risk != "" {
		req.RiskProfile = *risk
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	res, err := a.Analyzer.Analyse(ctx, req)
	if err != nil {
		logger.Fatalf("analysis failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Fatalf("write result: %v", err)
	}
}

// readRequest accepts either {"portfolio": [...], "riskProfile": ...} or a bare
// array of positions.
func readRequest(path string) (service.Request, error) {
	var req service.Request
	b, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(b, &req); err == nil {
		return req, nil
	}
	if err := json.Unmarshal(b, &req.Portfolio); err != nil {
		return req, fmt.Errorf("%s is neither a request object nor a list of positions: %w", path, err)
	}
	return req, nil
}
