package config

import (
	"strconv"
	"time"
)

// LifecycleConfig drives the background jobs around the ride lifecycle.
type LifecycleConfig struct {
	AutoProgression   bool          `yaml:"auto_progression"`
	ProgressionDelay  time.Duration `yaml:"progression_delay"`
	AssignOffset      time.Duration `yaml:"assign_offset"`
	ArriveOffset      time.Duration `yaml:"arrive_offset"`
	StartOffset       time.Duration `yaml:"start_offset"`
	CompletionPerKm   time.Duration `yaml:"completion_per_km"`
	DefaultDistanceKm float64       `yaml:"default_distance_km"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	TaskTimeout       time.Duration `yaml:"task_timeout"`
}

func loadLifecycleConfig() *LifecycleConfig {
	return &LifecycleConfig{
		AutoProgression:   getEnvAsBool("AUTO_PROGRESSION_ENABLED", true),
		ProgressionDelay:  getEnvAsDuration("AUTO_PROGRESSION_DELAY", 10*time.Second),
		AssignOffset:      getEnvAsDuration("AUTO_PROGRESSION_ASSIGN_OFFSET", 2*time.Second),
		ArriveOffset:      getEnvAsDuration("AUTO_PROGRESSION_ARRIVE_OFFSET", 5*time.Second),
		StartOffset:       getEnvAsDuration("AUTO_PROGRESSION_START_OFFSET", 8*time.Second),
		CompletionPerKm:   getEnvAsDuration("AUTO_PROGRESSION_PER_KM", time.Second),
		DefaultDistanceKm: getEnvAsFloat64("AUTO_PROGRESSION_DEFAULT_KM", 5),
		SweepInterval:     getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
		TaskTimeout:       getEnvAsDuration("SCHEDULER_TASK_TIMEOUT", 30*time.Second),
	}
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
