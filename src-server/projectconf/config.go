package projectconf

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"calplanner/src-server/apperr"
	"calplanner/src-server/model"
	"calplanner/src-server/reconcile"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

const (
	Version    = 1
	dateLayout = "2006-01-02"
)

// The portable description of a project: what to subscribe to and which
// modules to show. Events are not part of it; they come back with the
// first sync.
type Config struct {
	Version   int        `yaml:"version"`
	Project   Project    `yaml:"project"`
	Calendars []Calendar `yaml:"calendars"`
}

type Project struct {
	Name      string `yaml:"name"`
	StartDate string `yaml:"start_date,omitempty"`
	EndDate   string `yaml:"end_date,omitempty"`
}

type Calendar struct {
	Url       string   `yaml:"url"`
	Label     string   `yaml:"label,omitempty"`
	Color     string   `yaml:"color,omitempty"`
	Inclusive *bool    `yaml:"inclusive,omitempty"`
	Modules   []Module `yaml:"modules,omitempty"`
}

type Module struct {
	Name     string `yaml:"name"`
	Selected bool   `yaml:"selected"`
}

// Describe a stored project.
func Export(ctx context.Context, db bun.IDB, projectID string) (*Config, error) {
	project, err := model.GetProject(ctx, db, projectID)
	if err != nil {
		return nil, err
	}
	calendars, err := model.ListCalendars(ctx, db, projectID)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Version: Version,
		Project: Project{
			Name:      project.Name,
			StartDate: formatDate(project.StartDateUnixUTC),
			EndDate:   formatDate(project.EndDateUnixUTC),
		},
		Calendars: make([]Calendar, 0, len(calendars)),
	}
	// oldest first, so that an import recreates them in the same order
	for i := len(calendars) - 1; i >= 0; i-- {
		calendar := calendars[i]
		modules, err := model.ListModules(ctx, db, calendar.ID)
		if err != nil {
			return nil, err
		}
		inclusive := calendar.IsInclusive
		entry := Calendar{
			Url:       calendar.Url,
			Label:     calendar.Label,
			Color:     calendar.Color,
			Inclusive: &inclusive,
			Modules:   make([]Module, 0, len(modules)),
		}
		for _, module := range modules {
			entry.Modules = append(entry.Modules, Module{Name: module.Name, Selected: module.IsVisible})
		}
		config.Calendars = append(config.Calendars, entry)
	}
	return config, nil
}

func (c *Config) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("(*Config).WriteYAML: %w", err)
	}
	return encoder.Close()
}

// Decode and validate a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	config := new(Config)
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.MalformedInput("empty project config", nil)
		}
		return nil, apperr.MalformedInput("can't decode project config", map[string]any{"err": err})
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Version != 0 && c.Version != Version {
		return apperr.MalformedInput("unsupported config version", map[string]any{"version": c.Version})
	}
	if strings.TrimSpace(c.Project.Name) == "" {
		return apperr.MalformedInput("project name is blank", nil)
	}
	start, err := parseDate(c.Project.StartDate)
	if err != nil {
		return apperr.MalformedInput("invalid start_date", map[string]any{"start_date": c.Project.StartDate})
	}
	end, err := parseDate(c.Project.EndDate)
	if err != nil {
		return apperr.MalformedInput("invalid end_date", map[string]any{"end_date": c.Project.EndDate})
	}
	if start != 0 && end != 0 && end < start {
		return apperr.MalformedInput("end_date is before start_date", nil)
	}
	for i, calendar := range c.Calendars {
		if err := model.ValidateFeedURL(calendar.Url); err != nil {
			return apperr.MalformedInput("invalid calendar url", map[string]any{"calendar": i})
		}
		if err := model.ValidateLabel(calendar.Label); err != nil {
			return apperr.MalformedInput("label is too short", map[string]any{"calendar": i})
		}
		if calendar.Color != "" && !model.ValidColor(calendar.Color) {
			return apperr.MalformedInput("invalid color", map[string]any{"calendar": i, "color": calendar.Color})
		}
		for _, module := range calendar.Modules {
			if strings.TrimSpace(module.Name) == "" {
				return apperr.MalformedInput("module name is blank", map[string]any{"calendar": i})
			}
		}
	}
	return nil
}

// Create a project from a config. The project and its calendars are written
// in one transaction; each calendar is then synced and its module selection
// applied. A calendar whose sync fails is kept for the scheduler to retry.
func Import(ctx context.Context, db *bun.DB, engine *reconcile.Engine, config *Config) (*model.Project, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	start, _ := parseDate(config.Project.StartDate)
	end, _ := parseDate(config.Project.EndDate)

	project := &model.Project{
		Name:             strings.TrimSpace(config.Project.Name),
		StartDateUnixUTC: start,
		EndDateUnixUTC:   end,
	}
	calendars := make([]*model.Calendar, 0, len(config.Calendars))
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := project.Insert(ctx, tx); err != nil {
			return err
		}
		for _, entry := range config.Calendars {
			inclusive := true
			if entry.Inclusive != nil {
				inclusive = *entry.Inclusive
			}
			calendar := &model.Calendar{
				ProjectID:   project.ID,
				Url:         strings.TrimSpace(entry.Url),
				IsInclusive: inclusive,
				Label:       entry.Label,
				Color:       entry.Color,
			}
			if err := calendar.Insert(ctx, tx); err != nil {
				return err
			}
			calendars = append(calendars, calendar)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("projectconf.Import: %w", err)
	}

	for i, calendar := range calendars {
		if _, err := engine.Sync(ctx, calendar.ID); err != nil {
			slog.Warn("imported calendar not synced yet", "calendar", calendar.ID, "error", err)
			continue
		}
		if err := applySelection(ctx, db, calendar.ID, config.Calendars[i].Modules); err != nil {
			return nil, err
		}
	}
	return project, nil
}

func applySelection(ctx context.Context, db bun.IDB, calendarID string, selection []Module) error {
	if len(selection) == 0 {
		return nil
	}
	modules, err := model.ListModules(ctx, db, calendarID)
	if err != nil {
		return err
	}
	byKey := make(map[string]model.Module, len(modules))
	for _, module := range modules {
		byKey[module.Key()] = module
	}
	for _, wanted := range selection {
		module, ok := byKey[model.ModuleKey(wanted.Name)]
		if !ok || module.IsVisible == wanted.Selected {
			continue
		}
		if _, err := model.SetModuleVisibility(ctx, db, module.ID, wanted.Selected); err != nil {
			return err
		}
	}
	return nil
}

func parseDate(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func formatDate(unix int64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format(dateLayout)
}
