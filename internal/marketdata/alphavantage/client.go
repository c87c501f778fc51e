package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockadvisor/internal/indicators"
	"stockadvisor/internal/marketdata"
	"stockadvisor/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://www.alphavantage.co/query"

// Client fetches quotes, company overviews and daily series from Alpha
// Vantage. The free tier is rate limited, so calls are made one at a time.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

var _ marketdata.Provider = (*Client)(nil)

func New(apiKey, baseURL string, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

func (c *Client) Name() string { return "alphavantage" }

type globalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	PreviousClose string `json:"08. previous close"`
	ChangePercent string `json:"10. change percent"`
}

type overview struct {
	Symbol               string `json:"Symbol"`
	Sector               string `json:"Sector"`
	FiftyDayAverage      string `json:"50DayMovingAverage"`
	TwoHundredDayAverage string `json:"200DayMovingAverage"`
}

type dailyBar struct {
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// Snapshot needs the quote; the overview and the daily series only enrich
// it, so their failures are logged and the snapshot is returned without them.
func (c *Client) Snapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	q, err := c.quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(q.Price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q for %s: %w", q.Price, ticker, err)
	}

	snap := &models.MarketSnapshot{
		Ticker:        ticker,
		Price:         price,
		ChangePercent: parseFloat(strings.TrimSuffix(q.ChangePercent, "%")),
		Sector:        models.UnknownSector,
		RSI:           models.NeutralRSI,
		Volume:        int64(parseFloat(q.Volume)),
		Source:        c.Name(),
		FetchedAt:     time.Now().UTC(),
	}

	ov, err := c.overview(ctx, ticker)
	if err != nil {
		c.log.Warnf("alphavantage overview for %s: %v", ticker, err)
	} else {
		if s := strings.TrimSpace(ov.Sector); s != "" && s != "None" {
			snap.Sector = s
		}
		snap.FiftyDayAvg = parseFloat(ov.FiftyDayAverage)
		snap.TwoHundredDayAvg = parseFloat(ov.TwoHundredDayAverage)
	}

	closes, volumes, err := c.daily(ctx, ticker)
	if err != nil {
		c.log.Warnf("alphavantage daily series for %s: %v", ticker, err)
		return snap, nil
	}
	if rsi, ok := indicators.RSI(closes, indicators.RSIPeriod); ok {
		snap.RSI = rsi
	}
	snap.AverageVolume = indicators.AverageVolume(volumes, indicators.AverageVolumePeriod)
	if snap.FiftyDayAvg == 0 {
		snap.FiftyDayAvg = indicators.SMA(closes, indicators.ShortTrendPeriod)
	}
	if snap.TwoHundredDayAvg == 0 {
		snap.TwoHundredDayAvg = indicators.SMA(closes, indicators.LongTrendPeriod)
	}
	return snap, nil
}

func (c *Client) quote(ctx context.Context, ticker string) (*globalQuote, error) {
	var body struct {
		Quote globalQuote `json:"Global Quote"`
	}
	if err := c.get(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {ticker}}, &body); err != nil {
		return nil, err
	}
	if body.Quote.Price == "" {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, ticker)
	}
	return &body.Quote, nil
}

func (c *Client) overview(ctx context.Context, ticker string) (*overview, error) {
	var body overview
	if err := c.get(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {ticker}}, &body); err != nil {
		return nil, err
	}
	if body.Symbol == "" {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, ticker)
	}
	return &body, nil
}

// daily returns closes and volumes, oldest first.
func (c *Client) daily(ctx context.Context, ticker string) ([]float64, []float64, error) {
	var body struct {
		Series map[string]dailyBar `json:"Time Series (Daily)"`
	}
	params := url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {ticker}, "outputsize": {"compact"}}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, nil, err
	}
	if len(body.Series) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, ticker)
	}

	dates := make([]string, 0, len(body.Series))
	for d := range body.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	closes := make([]float64, 0, len(dates))
	volumes := make([]float64, 0, len(dates))
	for _, d := range dates {
		bar := body.Series[d]
		closes = append(closes, parseFloat(bar.Close))
		volumes = append(volumes, parseFloat(bar.Volume))
	}
	return closes, volumes, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("alphavantage %s: %w", params.Get("function"), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alphavantage %s: %s", params.Get("function"), resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read alphavantage %s: %w", params.Get("function"), err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode alphavantage %s: %w", params.Get("function"), err)
	}
	// Rate limits and bad keys come back as 200 with a message field.
	for _, k := range []string{"Error Message", "Note", "Information"} {
		if msg, ok := raw[k]; ok {
			var s string
			_ = json.Unmarshal(msg, &s)
			return fmt.Errorf("alphavantage %s: %s", params.Get("function"), s)
		}
	}
	return json.Unmarshal(body, out)
}

// parseFloat treats Alpha Vantage placeholders ("None", "-", "") as zero.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
