package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/otomaze/internal/discord"
)

const voiceReadyTimeout = 10 * time.Second

var ErrVoiceNotReady = errors.New("discord voice connection is not ready")

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// JoinVoiceChannel joins muted=false, deafened=true: the bot only sends audio.
func (c *Client) JoinVoiceChannel(ctx context.Context, guildID, channelID string) (discordpkg.VoiceConnection, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	if err := waitVoiceReady(ctx, vc); err != nil {
		_ = vc.Disconnect()
		return nil, err
	}
	slog.Info("discord voice connection ready", "guild_id", guildID, "channel_id", channelID)
	return &voiceConnectionImpl{vc: vc}, nil
}

func waitVoiceReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	ctx, cancel := context.WithTimeout(ctx, voiceReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrVoiceNotReady, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

type voiceConnectionImpl struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConnectionImpl) Disconnect() error {
	return v.vc.Disconnect()
}

func (v *voiceConnectionImpl) Speaking(speaking bool) error {
	return v.vc.Speaking(speaking)
}

// SendOpus blocks while discordgo's sender is busy; it paces packets at 20ms.
func (v *voiceConnectionImpl) SendOpus(ctx context.Context, packet []byte) error {
	v.vc.RLock()
	ready := v.vc.Ready
	send := v.vc.OpusSend
	v.vc.RUnlock()
	if !ready || send == nil {
		return ErrVoiceNotReady
	}
	select {
	case send <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
