package bootstrap

import (
	"testing"

	"github.com/NayerAli/v2-ocr-sub002/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "queue only",
			modes: []config.ServiceMode{config.ServiceModeQueue},
			want:  1,
		},
		{
			name:  "reaper only",
			modes: []config.ServiceMode{config.ServiceModeReaper},
			want:  1,
		},
		{
			name:  "all services enabled",
			modes: []config.ServiceMode{config.ServiceModeQueue, config.ServiceModeReaper},
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 1,
		},
		{
			name:  "queue only",
			modes: []config.ServiceMode{config.ServiceModeQueue},
			want:  2,
		},
		{
			name:  "all services enabled",
			modes: []config.ServiceMode{config.ServiceModeQueue, config.ServiceModeReaper},
			want:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelBufferSize(enabled); got != tt.want {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{
			name:     "queue only",
			services: "queue",
			want:     []string{"queue"},
		},
		{
			name:     "queue and reaper",
			services: "queue,reaper",
			want:     []string{"queue", "reaper"},
		},
		{
			name:     "invalid service name",
			services: "queue,bogus",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Services: tt.services}

			got := GetEnabledServices(cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("GetEnabledServices(%q) = %v, want %v", tt.services, got, tt.want)
			}
			seen := make(map[string]bool, len(got))
			for _, name := range got {
				seen[name] = true
			}
			for _, name := range tt.want {
				if !seen[name] {
					t.Fatalf("GetEnabledServices(%q) = %v, missing %q", tt.services, got, name)
				}
			}
		})
	}
}

func TestGetEnabledServicesNilConfig(t *testing.T) {
	if got := GetEnabledServices(nil); len(got) != 0 {
		t.Fatalf("GetEnabledServices(nil) = %v, want empty", got)
	}
}
