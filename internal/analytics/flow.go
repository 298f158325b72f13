package analytics

import (
	"fmt"
	"math"
)

// Defaults reported when no data exists yet.
const (
	defaultAvgWaitMinutes      = 5
	defaultSustainabilityScore = 92
	kpiSustainabilityWindow    = 10
)

// FlowRow is the per-day flow summary. Days without samples report explicit
// zero averages and Samples=0, distinguishable from a quiet-but-sampled day.
type FlowRow struct {
	DayKey      string  `json:"dayKey"`
	AvgWait     float64 `json:"avgWait"`
	AvgQueue    float64 `json:"avgQueue"`
	AvgCapacity float64 `json:"avgCapacity"`
	Samples     int     `json:"samples"`
}

// OverviewKPIs is the rollup for the admin overview.
type OverviewKPIs struct {
	AvgWaitMinutes       float64 `json:"avgWaitMinutes"`
	PeakCongestionDay    string  `json:"peakCongestionDay"`
	PeakCongestionHour   string  `json:"peakCongestionHour"`
	FairnessIncidents24h int     `json:"fairnessIncidents24h"`
	SustainabilityScore  int     `json:"sustainabilityScore"`
}

// TemporalFlow recomputes per-day averages over the last days calendar
// days from the raw sample buffer, most recent day first.
func (s *Store) TemporalFlow(days int) []FlowRow {
	if days <= 0 {
		days = 7
	}
	s.mu.RLock()
	samples := s.ring.Snapshot()
	now := s.now()
	s.mu.RUnlock()

	type agg struct {
		wait, queue, capacity float64
		count                 int
	}
	byDay := make(map[string]*agg)
	for _, sample := range samples {
		key := sample.At.Format(dayKeyLayout)
		a := byDay[key]
		if a == nil {
			a = &agg{}
			byDay[key] = a
		}
		a.wait += float64(sample.WaitMinutes)
		a.queue += float64(sample.QueueCount)
		a.capacity += float64(sample.CapacityPercent)
		a.count++
	}

	rows := make([]FlowRow, 0, days)
	for d := 0; d < days; d++ {
		dayKey := now.AddDate(0, 0, -d).Format(dayKeyLayout)
		row := FlowRow{DayKey: dayKey}
		if a := byDay[dayKey]; a != nil && a.count > 0 {
			n := float64(a.count)
			row.AvgWait = round1(a.wait / n)
			row.AvgQueue = round1(a.queue / n)
			row.AvgCapacity = round1(a.capacity / n)
			row.Samples = a.count
		}
		rows = append(rows, row)
	}
	return rows
}

// OverviewKPIs derives the dashboard rollup: mean wait over days with data,
// the peak congestion day and hour, trailing-24h fairness incidents, and
// the mean of the last few sustainability scores.
func (s *Store) OverviewKPIs() OverviewKPIs {
	kpis := OverviewKPIs{
		AvgWaitMinutes:       defaultAvgWaitMinutes,
		SustainabilityScore:  defaultSustainabilityScore,
		FairnessIncidents24h: s.FairnessIncidents24h(),
	}

	flow := s.TemporalFlow(7)
	var waitSum float64
	var daysWithData int
	peakCapacity := -1.0
	for _, row := range flow {
		if row.Samples == 0 {
			continue
		}
		daysWithData++
		waitSum += row.AvgWait
		if row.AvgCapacity > peakCapacity {
			peakCapacity = row.AvgCapacity
			kpis.PeakCongestionDay = row.DayKey
		}
	}
	if daysWithData > 0 {
		kpis.AvgWaitMinutes = round1(waitSum / float64(daysWithData))
	}

	kpis.PeakCongestionHour = s.peakHour()

	scores := s.SustainabilityLog(kpiSustainabilityWindow)
	if len(scores) > 0 {
		var sum int
		for _, sample := range scores {
			sum += sample.Score
		}
		kpis.SustainabilityScore = int(math.Round(float64(sum) / float64(len(scores))))
	}
	return kpis
}

// peakHour finds the hour slot with the highest mean capacity across the
// whole buffer; falls back to the lunch peak when unsampled.
func (s *Store) peakHour() string {
	s.mu.RLock()
	samples := s.ring.Snapshot()
	s.mu.RUnlock()

	var sums [24]float64
	var counts [24]int
	for _, sample := range samples {
		h := sample.At.Hour()
		sums[h] += float64(sample.CapacityPercent)
		counts[h]++
	}
	best, bestAvg := -1, -1.0
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		avg := sums[h] / float64(counts[h])
		if avg > bestAvg {
			bestAvg = avg
			best = h
		}
	}
	if best < 0 {
		return "13:00"
	}
	return fmt.Sprintf("%02d:00", best)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
