package engine

import (
	"fmt"

	"github.com/trueform/formsight/internal/config"
	"github.com/trueform/formsight/internal/engine/native"
	"github.com/trueform/formsight/internal/engine/remote"
	"github.com/trueform/formsight/pkg/models"
)

// NewEngine constructs the appropriate analysis engine based on config.
// Called once at server startup.
func NewEngine(cfg config.EngineConfig) (models.Engine, error) {
	switch cfg.Provider {
	case "native":
		return native.NewEngine(cfg.Native), nil
	case "remote":
		return remote.NewEngine(cfg.Remote), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q: must be one of native, remote", cfg.Provider)
	}
}
