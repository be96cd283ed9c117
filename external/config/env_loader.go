package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/otomaze/internal/config"
)

type envConfig struct {
	Env                   string   `env:"ENV" envDefault:"production"`
	Output                string   `env:"OUTPUT" envDefault:"discord"`
	MixerChannels         int      `env:"MIXER_CHANNELS" envDefault:"3"`
	MixerFrameMs          int      `env:"MIXER_FRAME_MS" envDefault:"20"`
	MixerStarveTimeoutMs  int      `env:"MIXER_STARVE_TIMEOUT_MS" envDefault:"15"`
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildID        string   `env:"DISCORD_GUILD_ID"`
	DiscordVoiceChannelID string   `env:"DISCORD_VOICE_CHANNEL_ID"`
	OpusBitrate           int      `env:"OPUS_BITRATE" envDefault:"96000"`
	StartupTracks         []string `env:"STARTUP_TRACKS" envSeparator:","`
	StartupTracksPaused   bool     `env:"STARTUP_TRACKS_PAUSED" envDefault:"false"`
	FFmpegPath            string   `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	DatabaseURL           string   `env:"DATABASE_URL"`
	PlaybackWebhookURL    string   `env:"PLAYBACK_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	return fromEnv(raw)
}

func fromEnv(raw envConfig) (*internalconfig.Config, error) {
	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		Output:                raw.Output,
		MixerChannels:         raw.MixerChannels,
		MixerFrameMs:          raw.MixerFrameMs,
		MixerStarveTimeoutMs:  raw.MixerStarveTimeoutMs,
		DiscordToken:          raw.DiscordToken,
		DiscordGuildID:        raw.DiscordGuildID,
		DiscordVoiceChannelID: raw.DiscordVoiceChannelID,
		OpusBitrate:           raw.OpusBitrate,
		StartupTracks:         raw.StartupTracks,
		StartupTracksPaused:   raw.StartupTracksPaused,
		FFmpegPath:            raw.FFmpegPath,
		DatabaseURL:           raw.DatabaseURL,
		PlaybackWebhookURL:    raw.PlaybackWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
