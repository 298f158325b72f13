package predict

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"messhall-cloud/internal/simconfig"
)

// Confidence band for wait predictions. The ceiling drops to shockCeiling
// whenever an incident or unresolved critical alert is active.
const (
	confidenceBase = 0.88
	confidenceBand = 0.10
	shockCeiling   = 0.82
)

// WaitPrediction is the wait forecast for the current queue.
type WaitPrediction struct {
	WaitMinutes int     `json:"waitMinutes"`
	Confidence  float64 `json:"confidence"`
	QueueCount  int     `json:"queueCount"`
}

// Arrival recommends a later arrival window.
type Arrival struct {
	ArriveInMinutes      int       `json:"arriveInMinutes"`
	EstimatedSaveMinutes int       `json:"estimatedSaveMinutes"`
	SuggestedTime        time.Time `json:"suggestedTime"`
}

// Predictor derives wait and demand forecasts from queue state. Stateless
// given its inputs; randomness is confined to one noise draw per call so a
// fixed seed makes it deterministic.
type Predictor struct {
	cfg simconfig.Config
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New constructs a Predictor. A nil rng gets a time-based seed.
func New(cfg simconfig.Config, rng *rand.Rand) *Predictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Predictor{cfg: cfg, rng: rng, now: time.Now}
}

// PredictWait estimates wait minutes as queue/rate, clamped to the
// configured cap. An active incident adds a fixed penalty and caps
// confidence at the shock ceiling.
func (p *Predictor) PredictWait(queueCount int, shockActive bool) WaitPrediction {
	rate := p.cfg.ProcessRate
	wait := int(math.Round(float64(queueCount) / float64(rate)))
	if shockActive {
		wait += p.cfg.IncidentPenaltyMin
	}
	wait = clampInt(wait, 0, p.cfg.WaitCapMinutes)

	confidence := confidenceBase + p.noise()*confidenceBand
	if shockActive && confidence > shockCeiling {
		confidence = shockCeiling
	}
	return WaitPrediction{
		WaitMinutes: wait,
		Confidence:  math.Round(confidence*100) / 100,
		QueueCount:  queueCount,
	}
}

// BestTimeToArrive projects the queue forward by the configured horizon and
// reports the non-negative minutes saved by arriving then.
func (p *Predictor) BestTimeToArrive(queueCount int) Arrival {
	rate := float64(p.cfg.ProcessRate)
	horizon := p.cfg.ArrivalHorizonMin
	futureQueue := math.Max(0, float64(queueCount)-rate*0.25)
	waitNow := float64(queueCount) / rate * 60
	waitLater := futureQueue / rate * 60
	saved := int(math.Round(waitNow - waitLater))
	if saved < 0 {
		saved = 0
	}
	return Arrival{
		ArriveInMinutes:      horizon,
		EstimatedSaveMinutes: saved,
		SuggestedTime:        p.now().Add(time.Duration(horizon) * time.Minute),
	}
}

func (p *Predictor) noise() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
