package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/adapters/runner"
	"github.com/arlo/mail-triage/internal/config"
	"github.com/arlo/mail-triage/internal/core"
)

// RunnerFactory creates classification front-ends.
type RunnerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRunnerFactory creates a new runner factory.
func NewRunnerFactory(cfg *config.Config, logger *zap.Logger) *RunnerFactory {
	return &RunnerFactory{cfg: cfg, logger: logger}
}

// CreateRunner creates the configured runner over the service.
func (f *RunnerFactory) CreateRunner(service *core.ClassifierService) (core.Runner, error) {
	runnerCfg := f.cfg.GetRunner()

	switch runnerCfg.Type {
	case "jsonl":
		return runner.NewJSONLRunner(service, f.logger, runnerCfg.Input, runnerCfg.Output), nil
	case "cli":
		return runner.NewCLIRunner(service, f.logger, runnerCfg.Input, false), nil
	default:
		return nil, fmt.Errorf("%w: unsupported runner type: %s", core.ErrConfiguration, runnerCfg.Type)
	}
}
