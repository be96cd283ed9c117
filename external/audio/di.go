package audio

import (
	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Opener, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewOpener(cfg.FFmpegPath), nil
	})
	do.ProvideValue(injector, audio.SinkFactory(newSink))
}
