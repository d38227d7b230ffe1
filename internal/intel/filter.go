// Package intel ingests news/sentiment search results and economic-event
// keywords to produce a non-blocking risk and size-adjustment signal. The
// filter is advisory by design: it warns and scales size, it does not block
// trading except for explicit emergency phrasing past a threshold.
package intel

import (
	"strings"
	"time"
)

// SearchResult is one free-text item from the news/sentiment source.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	URL     string `json:"url"`
}

// Sentiment labels the aggregate tone of the scanned results.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// RiskTier drives the position-size multiplier.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// SizeMultiplier maps a risk tier to its advisory sizing factor.
func (r RiskTier) SizeMultiplier() float64 {
	switch r {
	case RiskLow:
		return 1.0
	case RiskMedium:
		return 0.75
	case RiskHigh:
		return 0.5
	case RiskCritical:
		return 0.25
	default:
		return 0.75
	}
}

// EconomicEvent is a detected scheduled-event keyword with its impact.
type EconomicEvent struct {
	Keyword string `json:"keyword"`
	Impact  string `json:"impact"` // "high" or "medium"
}

// TradingFilter is the advisory output consumed by the simulator and the
// exit engine's sizing policy. Transient: derived on each refresh, never
// persisted as authoritative state.
type TradingFilter struct {
	Sentiment      Sentiment       `json:"sentiment"`
	BullishScore   float64         `json:"bullish_score"`
	BearishScore   float64         `json:"bearish_score"`
	Confidence     float64         `json:"confidence"` // min(100, totalScore*2)
	RiskTier       RiskTier        `json:"risk_tier"`
	SizeMultiplier float64         `json:"size_multiplier"`
	ShouldTrade    bool            `json:"should_trade"`
	Events         []EconomicEvent `json:"events"`
	Warnings       []string        `json:"warnings"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Keyword weight tables. Scores accumulate per occurrence across all
// scanned results.
var bullishKeywords = map[string]float64{
	"rally":      3,
	"surge":      3,
	"breakout":   2,
	"bullish":    3,
	"upgrade":    2,
	"outperform": 2,
	"record high": 3,
	"buyback":    1,
	"beat":       2,
	"growth":     1,
	"recovery":   2,
}

var bearishKeywords = map[string]float64{
	"crash":      4,
	"plunge":     3,
	"selloff":    3,
	"bearish":    3,
	"downgrade":  2,
	"recession":  3,
	"default":    2,
	"miss":       2,
	"warning":    1,
	"layoffs":    2,
	"bankruptcy": 4,
}

// Economic-event keywords that raise the risk tier when present.
var highImpactEvents = []string{
	"fomc", "rate decision", "rate hike", "rate cut", "cpi", "inflation data",
	"non-farm payrolls", "nfp", "gdp release", "central bank",
}

var mediumImpactEvents = []string{
	"earnings", "pmi", "retail sales", "consumer confidence",
	"trade balance", "unemployment claims",
}

// Emergency phrases. Only these, past the configured count, flip
// ShouldTrade off: a historical mention of a crash is not an emergency.
var emergencyPhrases = []string{
	"trading halted", "circuit breaker triggered", "market closed",
	"flash crash underway", "exchange outage",
}

// Config tunes the filter.
type Config struct {
	EmergencyThreshold int `json:"emergency_threshold"` // emergency phrase count to block trading
}

// DefaultConfig returns the standard filter tuning.
func DefaultConfig() Config {
	return Config{EmergencyThreshold: 2}
}

// ConservativeDefault is returned when the news source cannot be reached:
// proceed with caution at medium risk, never an error to the caller.
func ConservativeDefault() *TradingFilter {
	return &TradingFilter{
		Sentiment:      SentimentNeutral,
		Confidence:     0,
		RiskTier:       RiskMedium,
		SizeMultiplier: RiskMedium.SizeMultiplier(),
		ShouldTrade:    true,
		Warnings:       []string{"news source unavailable, proceeding with caution"},
		GeneratedAt:    time.Now(),
	}
}

// Analyze scores the search results into a trading filter. Pure transform,
// never fails.
func Analyze(results []SearchResult, config Config) *TradingFilter {
	f := &TradingFilter{
		ShouldTrade: true,
		GeneratedAt: time.Now(),
	}
	if config.EmergencyThreshold <= 0 {
		config.EmergencyThreshold = DefaultConfig().EmergencyThreshold
	}

	emergencyCount := 0
	seenEvents := make(map[string]bool)

	for _, res := range results {
		text := strings.ToLower(res.Title + " " + res.Snippet)

		for kw, weight := range bullishKeywords {
			f.BullishScore += float64(strings.Count(text, kw)) * weight
		}
		for kw, weight := range bearishKeywords {
			f.BearishScore += float64(strings.Count(text, kw)) * weight
		}

		for _, kw := range highImpactEvents {
			if strings.Contains(text, kw) && !seenEvents[kw] {
				seenEvents[kw] = true
				f.Events = append(f.Events, EconomicEvent{Keyword: kw, Impact: "high"})
			}
		}
		for _, kw := range mediumImpactEvents {
			if strings.Contains(text, kw) && !seenEvents[kw] {
				seenEvents[kw] = true
				f.Events = append(f.Events, EconomicEvent{Keyword: kw, Impact: "medium"})
			}
		}

		for _, phrase := range emergencyPhrases {
			emergencyCount += strings.Count(text, phrase)
		}
	}

	total := f.BullishScore + f.BearishScore
	f.Confidence = total * 2
	if f.Confidence > 100 {
		f.Confidence = 100
	}

	switch {
	case f.BullishScore > f.BearishScore*1.2:
		f.Sentiment = SentimentBullish
	case f.BearishScore > f.BullishScore*1.2:
		f.Sentiment = SentimentBearish
	default:
		f.Sentiment = SentimentNeutral
	}

	f.RiskTier = riskTier(f, emergencyCount)
	f.SizeMultiplier = f.RiskTier.SizeMultiplier()

	if emergencyCount >= config.EmergencyThreshold {
		f.ShouldTrade = false
		f.Warnings = append(f.Warnings, "emergency market conditions detected, trading blocked")
	} else if emergencyCount > 0 {
		f.Warnings = append(f.Warnings, "emergency phrasing seen below the block threshold")
	}
	for _, ev := range f.Events {
		if ev.Impact == "high" {
			f.Warnings = append(f.Warnings, "high-impact event ahead: "+ev.Keyword)
		}
	}

	return f
}

// riskTier derives the tier from event impact, sentiment skew and
// emergency phrasing.
func riskTier(f *TradingFilter, emergencyCount int) RiskTier {
	if emergencyCount > 0 {
		return RiskCritical
	}
	highImpact := 0
	for _, ev := range f.Events {
		if ev.Impact == "high" {
			highImpact++
		}
	}
	switch {
	case highImpact >= 2:
		return RiskHigh
	case highImpact == 1 || f.Sentiment == SentimentBearish:
		return RiskMedium
	case len(f.Events) > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}
