package predict

import (
	"math"
	"time"
)

// ZoneCount is the detected headcount for one floor zone.
type ZoneCount struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Detection is a zone-level headcount estimate. Real camera inference is a
// stubbed collaborator; this synthesizes a plausible split.
type Detection struct {
	ZoneID     string      `json:"zoneId"`
	Count      int         `json:"count"`
	Confidence float64     `json:"confidence"`
	Zones      []ZoneCount `json:"zones"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DetectQueue synthesizes a headcount split across the entry, counter, and
// exit zones.
func (p *Predictor) DetectQueue(zoneID string) Detection {
	if zoneID == "" {
		zoneID = "main"
	}
	count := 20 + int(p.noise()*30)
	confidence := math.Round((0.92+p.noise()*0.06)*100) / 100
	return Detection{
		ZoneID:     zoneID,
		Count:      count,
		Confidence: confidence,
		Zones: []ZoneCount{
			{ID: "A", Label: "Entry Hall", Count: int(float64(count) * 0.35)},
			{ID: "B", Label: "Counter", Count: int(float64(count) * 0.45)},
			{ID: "C", Label: "Exit Path", Count: int(float64(count) * 0.2)},
		},
		Timestamp: p.now(),
	}
}
