// Package baseline builds per-account behavioral profiles and flags
// transactions that deviate from them. The model is a fixed statistical
// heuristic (amount z-score, hour window, frequent locations), not a
// trained classifier.
package baseline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mbd888/fraudwatch/internal/feature"
)

const (
	// minStddev floors the amount standard deviation so a perfectly
	// consistent spending history never divides by zero.
	minStddev = 1e-6

	// zThreshold is the amount deviation cutoff in standard deviations.
	zThreshold = 3.0

	// hourSlack widens the observed hour range on both sides.
	hourSlack = 2

	// topLocations is how many frequent locations a baseline keeps.
	topLocations = 3
)

// LocationCount is one entry in a baseline's frequent-location list.
type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// Baseline is a per-account profile of historically normal behavior.
// Rebuilt on demand from a bounded history window, never maintained
// incrementally.
type Baseline struct {
	AccountID    string          `json:"account_id"`
	AmountMean   float64         `json:"amount_mean"`
	AmountStddev float64         `json:"amount_stddev"` // never below minStddev
	HourMin      int             `json:"hour_min"`
	HourMax      int             `json:"hour_max"`
	Locations    []LocationCount `json:"common_locations"`
	SampleSize   int             `json:"sample_size"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// Build computes a baseline from historical transactions. With no history
// the profile defaults to mean 0, stddev 1, hour range (8,20). Transactions
// with unparseable timestamps contribute hour 12 (noon), matching the
// feature extractor's default.
func Build(accountID string, history []*feature.Transaction) *Baseline {
	b := &Baseline{
		AccountID:  accountID,
		SampleSize: len(history),
		ComputedAt: time.Now().UTC(),
	}

	if len(history) == 0 {
		b.AmountStddev = 1
		b.HourMin, b.HourMax = 8, 20
		return b
	}

	var sum float64
	hourMin, hourMax := 23, 0
	counts := make(map[string]int)
	var firstSeen []string

	for _, tx := range history {
		sum += tx.Amount

		hour := 12
		if ts, err := feature.ParseTime(tx.Timestamp); err == nil {
			hour = ts.Hour()
		}
		if hour < hourMin {
			hourMin = hour
		}
		if hour > hourMax {
			hourMax = hour
		}

		loc := foldLocation(tx.Location)
		if counts[loc] == 0 {
			firstSeen = append(firstSeen, loc)
		}
		counts[loc]++
	}

	n := float64(len(history))
	b.AmountMean = sum / n

	var varianceSum float64
	for _, tx := range history {
		diff := tx.Amount - b.AmountMean
		varianceSum += diff * diff
	}
	b.AmountStddev = math.Sqrt(varianceSum / n)
	if b.AmountStddev < minStddev {
		b.AmountStddev = minStddev
	}

	b.HourMin, b.HourMax = hourMin, hourMax

	// Top locations by count; ties keep first-seen order. Stable sort over
	// the first-seen slice gives deterministic output.
	ranked := make([]string, len(firstSeen))
	copy(ranked, firstSeen)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > topLocations {
		ranked = ranked[:topLocations]
	}
	for _, loc := range ranked {
		b.Locations = append(b.Locations, LocationCount{Location: loc, Count: counts[loc]})
	}

	return b
}

// IsAnomalous compares a transaction to the baseline. Checks run in fixed
// order (amount, then time, then location) and short-circuit on the first
// hit. An unparseable timestamp counts as anomalous here: at scoring time a
// malformed timestamp is suspicious, while feature extraction treats the
// same input as neutral.
func IsAnomalous(tx *feature.Transaction, b *Baseline) bool {
	z := math.Abs(tx.Amount-b.AmountMean) / b.AmountStddev
	if z > zThreshold {
		return true
	}

	ts, err := feature.ParseTime(tx.Timestamp)
	if err != nil {
		return true
	}
	hour := ts.Hour()
	if hour < b.HourMin-hourSlack || hour > b.HourMax+hourSlack {
		return true
	}

	return !b.knownLocation(tx.Location)
}

// Score grades how far a transaction sits from the baseline on [0,1].
// Weights: amount deviation 0.5, time-of-day 0.3, location novelty 0.2.
// Used as the pipeline's ml_score input.
func Score(tx *feature.Transaction, b *Baseline) float64 {
	z := math.Abs(tx.Amount-b.AmountMean) / b.AmountStddev
	amountPart := z / zThreshold
	if amountPart > 1 {
		amountPart = 1
	}

	timePart := 0.0
	if ts, err := feature.ParseTime(tx.Timestamp); err != nil {
		timePart = 1
	} else if hour := ts.Hour(); hour < b.HourMin-hourSlack || hour > b.HourMax+hourSlack {
		timePart = 1
	}

	locationPart := 0.0
	if !b.knownLocation(tx.Location) {
		locationPart = 1
	}

	score := 0.5*amountPart + 0.3*timePart + 0.2*locationPart
	return math.Round(score*1e4) / 1e4
}

func (b *Baseline) knownLocation(location string) bool {
	loc := foldLocation(location)
	for _, lc := range b.Locations {
		if lc.Location == loc {
			return true
		}
	}
	return false
}

func foldLocation(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s)
}
