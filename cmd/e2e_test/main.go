package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

func baseURL() string {
	if v := os.Getenv("BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Usage before
	before := usage()

	// 3. Invalid requests are rejected and not billed
	checkEndpoint("POST", "/analyse", map[string]interface{}{"portfolio": []interface{}{}}, 400)
	checkEndpoint("POST", "/analyse", map[string]interface{}{
		"portfolio": []map[string]interface{}{{"ticker": "IBM", "quantity": 1, "averagePrice": 0}},
	}, 400)

	// 4. Analyse a portfolio
	body := checkEndpoint("POST", "/analyse", map[string]interface{}{
		"portfolio": []map[string]interface{}{
			{"ticker": "IBM", "quantity": 10, "averagePrice": 150},
			{"ticker": "MSFT", "quantity": 5, "averagePrice": 300},
		},
		"riskProfile": "Moderate",
	}, 200)
	var res struct {
		RequestID string            `json:"request_id"`
		Advice    []json.RawMessage `json:"advice"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		log.Fatalf("decode analyse response: %v", err)
	}
	if res.RequestID == "" || len(res.Advice) == 0 {
		log.Fatalf("analyse response missing request_id or advice: %s", string(body))
	}

	// 5. Usage after
	after := usage()
	if after.PortfoliosAnalyzed != before.PortfoliosAnalyzed+1 {
		log.Fatalf("expected portfolios_analyzed to grow by 1, got %d -> %d", before.PortfoliosAnalyzed, after.PortfoliosAnalyzed)
	}

	// 6. Metrics
	checkEndpoint("GET", "/metrics", nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

type usageStats struct {
	PortfoliosAnalyzed int64  `json:"portfolios_analyzed"`
	AdviceGenerated    int64  `json:"advice_generated"`
	TotalBill          string `json:"total_bill"`
}

func usage() usageStats {
	var u usageStats
	if err := json.Unmarshal(checkEndpoint("GET", "/usage", nil, 200), &u); err != nil {
		log.Fatalf("decode usage: %v", err)
	}
	return u
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL()+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	if len(respBody) > 300 {
		fmt.Printf("Response: %s...\n", string(respBody[:300]))
	} else {
		fmt.Printf("Response: %s\n", string(respBody))
	}
	return respBody
}
