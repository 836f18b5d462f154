package packforge

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

// autosaver periodically persists every config scope with the same
// isolation contract as Shutdown: each save independent, failures
// aggregated and logged, nothing escalated.
type autosaver struct {
	cron *cron.Cron
}

// EnableAutosave schedules periodic configuration persistence using a cron
// expression (standard five-field format, e.g. "*/5 * * * *"). Autosave is
// optional; Shutdown still persists everything regardless. The schedule
// stops when Shutdown runs.
func (o *Orchestrator) EnableAutosave(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, o.autosaveAll)
	if err != nil {
		return fmt.Errorf("autosave schedule %q: %w", schedule, err)
	}
	o.autosave = &autosaver{cron: c}
	c.Start()
	o.logger.Info("Config autosave enabled", "schedule", schedule)
	return nil
}

func (o *Orchestrator) autosaveAll() {
	var errs error
	if err := o.config.Save(); err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, p := range o.Participants() {
		if err := p.Config.Save(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("participant %s: %w", p.DisplayName(), err))
		}
	}
	if errs != nil {
		o.logger.Error("Autosave persistence failures",
			"failures", len(multierr.Errors(errs)), "error", errs)
	}
}

func (a *autosaver) stop() {
	a.cron.Stop()
}
