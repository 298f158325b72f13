package analytics

import (
	"fmt"
	"math"
)

const dayKeyLayout = "2006-01-02"

// HeatmapCell is the aggregated congestion for one (day, hour) slot.
// Severity is the mean capacity percent of the slot's samples; slots with
// no samples carry the deterministic baseline so "no data" never renders as
// "no congestion".
type HeatmapCell struct {
	DayKey   string  `json:"dayKey"`
	TimeSlot string  `json:"timeSlot"`
	Hour     int     `json:"hour"`
	Severity float64 `json:"severity"`
	Samples  int     `json:"samples"`
	Baseline bool    `json:"baseline"`
}

// Heatmap recomputes the day x hour occupancy grid over the last days
// calendar days from the raw sample buffer.
func (s *Store) Heatmap(days int) []HeatmapCell {
	if days <= 0 {
		days = 7
	}
	s.mu.RLock()
	samples := s.ring.Snapshot()
	now := s.now()
	s.mu.RUnlock()

	type slot struct {
		sum   float64
		count int
	}
	bySlot := make(map[string]*slot)
	for _, sample := range samples {
		key := slotKey(sample.At.Format(dayKeyLayout), sample.At.Hour())
		agg := bySlot[key]
		if agg == nil {
			agg = &slot{}
			bySlot[key] = agg
		}
		agg.sum += float64(sample.CapacityPercent)
		agg.count++
	}

	cells := make([]HeatmapCell, 0, days*24)
	for d := 0; d < days; d++ {
		dayKey := now.AddDate(0, 0, -d).Format(dayKeyLayout)
		for h := 0; h < 24; h++ {
			cell := HeatmapCell{
				DayKey:   dayKey,
				TimeSlot: fmt.Sprintf("%02d:00", h),
				Hour:     h,
			}
			if agg := bySlot[slotKey(dayKey, h)]; agg != nil && agg.count > 0 {
				cell.Severity = math.Round(agg.sum/float64(agg.count)*10) / 10
				cell.Samples = agg.count
			} else {
				cell.Severity = BaselineByHour(h)
				cell.Baseline = true
			}
			cells = append(cells, cell)
		}
	}
	return cells
}

// BaselineByHour is the deterministic expected-congestion curve used for
// unsampled heatmap slots: breakfast, lunch, and dinner peaks over a quiet
// overnight floor, in capacity-percent units.
func BaselineByHour(hour int) float64 {
	switch hour {
	case 7:
		return 40
	case 8:
		return 48
	case 9:
		return 42
	case 12:
		return 68
	case 13:
		return 75
	case 14:
		return 62
	case 19:
		return 55
	case 20:
		return 62
	case 21:
		return 50
	case 10, 11, 15, 16, 17, 18:
		return 25
	case 6, 22:
		return 12
	default:
		return 6
	}
}

func slotKey(dayKey string, hour int) string {
	return fmt.Sprintf("%s-%02d", dayKey, hour)
}
