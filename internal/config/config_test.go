package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Errorf("App.Port = %d, want 8080", cfg.App.Port)
	}
	if cfg.Events.Broker != EventsBrokerNone {
		t.Errorf("Events.Broker = %q, want %q", cfg.Events.Broker, EventsBrokerNone)
	}
	if !cfg.Lifecycle.AutoProgression || cfg.Lifecycle.ProgressionDelay != 10*time.Second {
		t.Errorf("Lifecycle = %+v", cfg.Lifecycle)
	}
	if cfg.Lifecycle.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.Lifecycle.SweepInterval)
	}
	if cfg.App.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.App.Location())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_TIMEZONE", "Asia/Kathmandu")
	t.Setenv("AUTO_PROGRESSION_ENABLED", "false")
	t.Setenv("AUTO_PROGRESSION_DEFAULT_KM", "12.5")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "90s")
	t.Setenv("EVENTS_BROKER", EventsBrokerKafka)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Location().String() != "Asia/Kathmandu" {
		t.Errorf("Location() = %v", cfg.App.Location())
	}
	if cfg.Lifecycle.AutoProgression {
		t.Error("AutoProgression = true, want false")
	}
	if cfg.Lifecycle.DefaultDistanceKm != 12.5 {
		t.Errorf("DefaultDistanceKm = %v, want 12.5", cfg.Lifecycle.DefaultDistanceKm)
	}
	if cfg.Lifecycle.SweepInterval != 90*time.Second {
		t.Errorf("SweepInterval = %v, want 90s", cfg.Lifecycle.SweepInterval)
	}
	if got := strings.Join(cfg.Events.KafkaBrokers, "|"); got != "kafka-1:9092|kafka-2:9092" {
		t.Errorf("KafkaBrokers = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr []string
	}{
		{
			name:    "missing secret",
			env:     map[string]string{},
			wantErr: []string{"JWT_SECRET"},
		},
		{
			name:    "bad timezone and port",
			env:     map[string]string{"JWT_SECRET": "s", "APP_TIMEZONE": "Mars/Olympus", "APP_PORT": "70000"},
			wantErr: []string{"APP_TIMEZONE", "APP_PORT"},
		},
		{
			name:    "kafka without brokers",
			env:     map[string]string{"JWT_SECRET": "s", "EVENTS_BROKER": "kafka"},
			wantErr: []string{"KAFKA_BROKERS"},
		},
		{
			name:    "rabbitmq without url",
			env:     map[string]string{"JWT_SECRET": "s", "EVENTS_BROKER": "rabbitmq"},
			wantErr: []string{"RABBITMQ_URL"},
		},
		{
			name:    "unknown broker",
			env:     map[string]string{"JWT_SECRET": "s", "EVENTS_BROKER": "pigeon"},
			wantErr: []string{"EVENTS_BROKER"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %s", err, want)
				}
			}
		})
	}
}
