package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Env:                   "development",
		Output:                OutputDiscord,
		MixerChannels:         3,
		MixerFrameMs:          20,
		MixerStarveTimeoutMs:  15,
		DiscordToken:          "token",
		DiscordGuildID:        "guild",
		DiscordVoiceChannelID: "vc",
		OpusBitrate:           96000,
		FFmpegPath:            "ffmpeg",
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingDiscordFields(t *testing.T) {
	cfg := validConfig()
	cfg.DiscordVoiceChannelID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when voice channel id is missing")
	}
}

func TestValidate_StdoutDoesNotNeedDiscord(t *testing.T) {
	cfg := validConfig()
	cfg.Output = OutputStdout
	cfg.DiscordToken = ""
	cfg.DiscordGuildID = ""
	cfg.DiscordVoiceChannelID = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_OtherFrameSizesWithoutDiscord(t *testing.T) {
	for _, ms := range []int{10, 40, 60} {
		cfg := validConfig()
		cfg.Output = OutputSpeaker
		cfg.MixerFrameMs = ms
		cfg.MixerStarveTimeoutMs = 5
		if err := cfg.Validate(); err != nil {
			t.Fatalf("frame %dms: expected no error, got %v", ms, err)
		}
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown output", mutate: func(c *Config) { c.Output = "file" }},
		{name: "zero channels", mutate: func(c *Config) { c.MixerChannels = 0 }},
		{name: "too many channels", mutate: func(c *Config) { c.MixerChannels = 33 }},
		{name: "non opus frame", mutate: func(c *Config) { c.MixerFrameMs = 25 }},
		{name: "discord with 10ms frames", mutate: func(c *Config) { c.MixerFrameMs = 10; c.MixerStarveTimeoutMs = 5 }},
		{name: "discord with 60ms frames", mutate: func(c *Config) { c.MixerFrameMs = 60 }},
		{name: "starve timeout not below frame", mutate: func(c *Config) { c.MixerStarveTimeoutMs = 20 }},
		{name: "zero starve timeout", mutate: func(c *Config) { c.MixerStarveTimeoutMs = 0 }},
		{name: "bitrate too low", mutate: func(c *Config) { c.OpusBitrate = 100 }},
		{name: "empty startup track", mutate: func(c *Config) { c.StartupTracks = []string{"a.mp3", " "} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
	cfg.Env = "production"
	if cfg.IsDevelopment() {
		t.Fatal("expected non-development mode")
	}
}

func TestDurations(t *testing.T) {
	cfg := validConfig()
	if cfg.FrameDuration() != 20*time.Millisecond || cfg.StarveTimeout() != 15*time.Millisecond {
		t.Fatalf("unexpected durations: %v %v", cfg.FrameDuration(), cfg.StarveTimeout())
	}
}
