package session

import (
	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
	"github.com/foxseedlab/otomaze/internal/discord"
	"github.com/foxseedlab/otomaze/internal/repository"
	"github.com/foxseedlab/otomaze/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		opener := do.MustInvoke[audio.Opener](i)
		newSink := do.MustInvoke[audio.SinkFactory](i)
		repo := do.MustInvoke[repository.PlaybackRepository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, dc, opener, newSink, repo, wh), nil
	})
}
