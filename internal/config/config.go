package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	OutputDiscord = "discord"
	OutputSpeaker = "speaker"
	OutputStdout  = "stdout"

	maxMixerChannels = 32
	discordFrameMs   = 20
)

type Config struct {
	Env                   string
	Output                string
	MixerChannels         int
	MixerFrameMs          int
	MixerStarveTimeoutMs  int
	DiscordToken          string
	DiscordGuildID        string
	DiscordVoiceChannelID string
	OpusBitrate           int
	StartupTracks         []string
	StartupTracksPaused   bool
	FFmpegPath            string
	DatabaseURL           string
	PlaybackWebhookURL    string
}

func (c *Config) Validate() error {
	switch c.Output {
	case OutputDiscord:
		for _, req := range c.requiredFieldChecks() {
			if req.value == "" {
				return fmt.Errorf("%s is required when OUTPUT=%s", req.name, OutputDiscord)
			}
		}
	case OutputSpeaker, OutputStdout:
	default:
		return fmt.Errorf("OUTPUT must be one of %s, %s, %s, got %q", OutputDiscord, OutputSpeaker, OutputStdout, c.Output)
	}
	if c.MixerChannels < 1 || c.MixerChannels > maxMixerChannels {
		return fmt.Errorf("MIXER_CHANNELS must be between 1 and %d, got %d", maxMixerChannels, c.MixerChannels)
	}
	if !isOpusFrameMs(c.MixerFrameMs) {
		return fmt.Errorf("MIXER_FRAME_MS must be one of 10, 20, 40, 60, got %d", c.MixerFrameMs)
	}
	// discordgo paces and timestamps voice packets as 960-sample frames
	if c.Output == OutputDiscord && c.MixerFrameMs != discordFrameMs {
		return fmt.Errorf("MIXER_FRAME_MS must be %d when OUTPUT=%s, got %d", discordFrameMs, OutputDiscord, c.MixerFrameMs)
	}
	if c.MixerStarveTimeoutMs <= 0 || c.MixerStarveTimeoutMs >= c.MixerFrameMs {
		return fmt.Errorf("MIXER_STARVE_TIMEOUT_MS must be positive and below MIXER_FRAME_MS, got %d", c.MixerStarveTimeoutMs)
	}
	if c.OpusBitrate < 6000 || c.OpusBitrate > 510000 {
		return fmt.Errorf("OPUS_BITRATE must be between 6000 and 510000, got %d", c.OpusBitrate)
	}
	for _, track := range c.StartupTracks {
		if strings.TrimSpace(track) == "" {
			return fmt.Errorf("STARTUP_TRACKS contains an empty entry")
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "DISCORD_VOICE_CHANNEL_ID", value: c.DiscordVoiceChannelID},
	}
}

func isOpusFrameMs(ms int) bool {
	switch ms {
	case 10, 20, 40, 60:
		return true
	}
	return false
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.MixerFrameMs) * time.Millisecond
}

func (c *Config) StarveTimeout() time.Duration {
	return time.Duration(c.MixerStarveTimeoutMs) * time.Millisecond
}
