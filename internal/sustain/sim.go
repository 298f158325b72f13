package sustain

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Calibrated for 600-1200 meals/day and 10-60kg daily waste.
const (
	carbonFactor = 1.8
	waterFactor  = 10

	minDailyWasteKg = 10
	maxDailyWasteKg = 60
)

var meals = []string{"Chicken Biryani", "Dal Rice", "Paneer Curry"}

// WasteWindow marks a half-hour window of elevated waste in one zone.
type WasteWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Zone  string `json:"zone"`
}

// Sample is one synthesized plate-return/waste observation.
type Sample struct {
	Timestamp        time.Time    `json:"timestamp"`
	Hour             int          `json:"hour"`
	QueueSize        int          `json:"queueSize"`
	Congestion       string       `json:"congestion"`
	PlateRate        int          `json:"plateRate"`
	CompletionRatio  float64      `json:"completionRatio"`
	WasteRatio       float64      `json:"wasteRatio"`
	WasteKgPerMin    float64      `json:"wasteKgPerMin"`
	DailyWasteKg     float64      `json:"dailyWasteKg"`
	CarbonSavedKg    float64      `json:"carbonSavedKg"`
	WaterSavedL      int          `json:"waterSavedL"`
	Score            int          `json:"sustainabilityScore"`
	WasteTrend       string       `json:"wasteTrend"`
	MostEatenMeal    string       `json:"mostEatenMeal"`
	HighWasteWindow  *WasteWindow `json:"highWasteWindow"`
}

// Simulator synthesizes sustainability samples. Daily waste rolls forward
// between calls, so a single Simulator owns the series.
type Simulator struct {
	mu               sync.Mutex
	rng              *rand.Rand
	rollingDailyWaste float64
}

// NewSimulator constructs a Simulator around rng. Tests inject a fixed seed.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		rng:               rng,
		rollingDailyWaste: 25 + rng.Float64()*10,
	}
}

// Sample synthesizes one observation for the given clock and queue state.
// Plate flow is time-of-day biased; completion is congestion-penalized with
// a single gaussian noise term.
func (s *Simulator) Sample(now time.Time, queueSize int, congestion string) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := now.Hour()

	baseRate := 8 + s.rng.Float64()*6
	flow := clamp(baseRate*timeBias(hour), 5, 16)

	completion := clamp(0.82-congestionPenalty(congestion)+s.rng.NormFloat64()*0.03, 0.65, 0.92)
	wasteRatio := clamp(1-completion, 0.05, 0.35)

	wasteKgPerPlate := clamp(0.02+s.rng.NormFloat64()*0.008, 0.01, 0.05)
	wasteKgPerMin := flow * wasteRatio * wasteKgPerPlate

	s.rollingDailyWaste = clamp(
		s.rollingDailyWaste+wasteKgPerMin*2+s.rng.NormFloat64()*0.5,
		minDailyWasteKg, maxDailyWasteKg,
	)

	sample := Sample{
		Timestamp:       now,
		Hour:            hour,
		QueueSize:       queueSize,
		Congestion:      normalizeCongestion(congestion),
		PlateRate:       int(math.Round(flow)),
		CompletionRatio: round1(completion * 100),
		WasteRatio:      round1(wasteRatio * 100),
		WasteKgPerMin:   round3(wasteKgPerMin),
		DailyWasteKg:    round1(s.rollingDailyWaste),
		CarbonSavedKg:   round1(s.rollingDailyWaste * carbonFactor * completion),
		WaterSavedL:     int(math.Round(s.rollingDailyWaste * waterFactor * completion)),
		Score:           int(math.Round(completion * 100)),
		WasteTrend:      wasteTrend(wasteRatio),
		MostEatenMeal:   meals[s.rng.Intn(len(meals))],
	}
	if wasteRatio > 0.22 {
		sample.HighWasteWindow = &WasteWindow{
			Start: fmt.Sprintf("%02d:%02d", hour, now.Minute()),
			End:   fmt.Sprintf("%02d:%02d", hour, (now.Minute()+30)%60),
			Zone:  "B",
		}
	}
	return sample
}

// timeBias scales plate flow by meal hour: breakfast 7-9, lunch 12-14,
// dinner 19-21, quiet otherwise.
func timeBias(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 9:
		return 1.1
	case hour >= 12 && hour <= 14:
		return 1.4
	case hour >= 19 && hour <= 21:
		return 1.5
	default:
		return 0.6
	}
}

func congestionPenalty(level string) float64 {
	switch normalizeCongestion(level) {
	case "HIGH":
		return 0.18
	case "LOW":
		return -0.05
	default:
		return 0
	}
}

func normalizeCongestion(level string) string {
	switch level {
	case "high", "HIGH":
		return "HIGH"
	case "low", "LOW":
		return "LOW"
	default:
		return "MEDIUM"
	}
}

func wasteTrend(wasteRatio float64) string {
	switch {
	case wasteRatio > 0.25:
		return "high"
	case wasteRatio > 0.15:
		return "medium"
	default:
		return "low"
	}
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
