package simconfig

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DeltaSkew weights the signed queue-delta distribution drawn on each queue
// tick. Weights are cumulative-probability thresholds in [0,1]; anything
// above SmallArrive is a surge. Tunable policy, not a contract.
type DeltaSkew struct {
	BatchServe  float64 `yaml:"batch_serve"`
	SmallServe  float64 `yaml:"small_serve"`
	SmallArrive float64 `yaml:"small_arrive"`
}

// ScenarioBias shapes forecast demand for one scenario by hour of day.
type ScenarioBias struct {
	Base         float64 `yaml:"base"`
	MorningBoost float64 `yaml:"morning_boost"`
	LunchBoost   float64 `yaml:"lunch_boost"`
	DinnerBoost  float64 `yaml:"dinner_boost"`
}

// Config carries every tunable of the simulation and predictor.
type Config struct {
	QueueTick          time.Duration `yaml:"queue_tick"`
	PredictionTick     time.Duration `yaml:"prediction_tick"`
	IncidentCheckTick  time.Duration `yaml:"incident_check_tick"`
	SustainabilityTick time.Duration `yaml:"sustainability_tick"`

	IncidentChance float64 `yaml:"incident_chance"`
	FairnessChance float64 `yaml:"fairness_chance"`

	MaxQueue        int `yaml:"max_queue"`
	MediumThreshold int `yaml:"medium_threshold"`
	HighThreshold   int `yaml:"high_threshold"`
	CapacityBase    int `yaml:"capacity_base"`
	InitialQueue    int `yaml:"initial_queue"`

	ProcessRate          int `yaml:"process_rate"`
	WaitCapMinutes       int `yaml:"wait_cap_minutes"`
	IncidentPenaltyMin   int `yaml:"incident_penalty_minutes"`
	ArrivalHorizonMin    int `yaml:"arrival_horizon_minutes"`
	ForecastHorizonHours int `yaml:"forecast_horizon_hours"`

	DeltaSkew DeltaSkew               `yaml:"delta_skew"`
	Scenarios map[string]ScenarioBias `yaml:"scenarios"`

	Seed int64 `yaml:"seed"`
}

// Default returns the shipped policy. Cadences and probabilities mirror the
// production dashboard tuning.
func Default() Config {
	return Config{
		QueueTick:          4 * time.Second,
		PredictionTick:     5 * time.Second,
		IncidentCheckTick:  15 * time.Second,
		SustainabilityTick: 8 * time.Second,

		IncidentChance: 0.03,
		FairnessChance: 0.02,

		MaxQueue:        250,
		MediumThreshold: 60,
		HighThreshold:   120,
		CapacityBase:    200,
		InitialQueue:    85,

		ProcessRate:          12,
		WaitCapMinutes:       30,
		IncidentPenaltyMin:   8,
		ArrivalHorizonMin:    15,
		ForecastHorizonHours: 24,

		DeltaSkew: DeltaSkew{
			BatchServe:  0.2,
			SmallServe:  0.5,
			SmallArrive: 0.8,
		},
		Scenarios: map[string]ScenarioBias{
			"normal":  {Base: 200, LunchBoost: 150, DinnerBoost: 100},
			"exam":    {Base: 200, MorningBoost: 200},
			"weekend": {Base: 180},
			"weather": {Base: 240, LunchBoost: 150, DinnerBoost: 100},
		},
	}
}

// Load reads config from a yaml file over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.QueueTick <= 0 || c.PredictionTick <= 0 || c.IncidentCheckTick <= 0 || c.SustainabilityTick <= 0 {
		return errors.New("simconfig: tick cadences must be positive")
	}
	if c.MaxQueue <= 0 {
		return errors.New("simconfig: max_queue must be positive")
	}
	if c.MediumThreshold < 0 || c.HighThreshold <= c.MediumThreshold {
		return errors.New("simconfig: thresholds must satisfy 0 <= medium < high")
	}
	if c.ProcessRate <= 0 {
		return errors.New("simconfig: process_rate must be positive")
	}
	if c.IncidentChance < 0 || c.IncidentChance > 1 || c.FairnessChance < 0 || c.FairnessChance > 1 {
		return errors.New("simconfig: chances must be within [0,1]")
	}
	skew := c.DeltaSkew
	if !(skew.BatchServe >= 0 && skew.BatchServe <= skew.SmallServe && skew.SmallServe <= skew.SmallArrive && skew.SmallArrive <= 1) {
		return errors.New("simconfig: delta_skew thresholds must be ascending within [0,1]")
	}
	return nil
}
