package discord

import "context"

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(ctx context.Context, guildID, channelID string) (VoiceConnection, error)
	GetBotUserID() (string, error)
}

// VoiceConnection sends pre-encoded Opus packets to a joined voice channel.
type VoiceConnection interface {
	Disconnect() error
	Speaking(speaking bool) error
	SendOpus(ctx context.Context, packet []byte) error
}
