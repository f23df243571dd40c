package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calplanner/src-server/apperr"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Project struct {
	bun.BaseModel `bun:"table:projects"`

	ID               string `bun:"id,pk"`        // required
	Name             string `bun:"name,notnull"` // required
	StartDateUnixUTC int64  `bun:"start_date"`   // 0 = unset
	EndDateUnixUTC   int64  `bun:"end_date"`     // 0 = unset
	PublicToken      string `bun:"public_token,unique,notnull"`
	CreatedAt        int64  `bun:"created_at,notnull"`

	Calendars []*Calendar `bun:"rel:has-many,join:id=project_id"`
}

func (p *Project) Insert(ctx context.Context, db bun.IDB) error {
	if db == nil {
		return fmt.Errorf("(*Project).Insert: db is nil")
	}
	if p.Name == "" {
		return apperr.MalformedInput("project name is blank", nil)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PublicToken == "" {
		p.PublicToken = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UTC().Unix()
	}
	if _, err := db.NewInsert().Model(p).Exec(ctx); err != nil {
		return fmt.Errorf("(*Project).Insert: %w", err)
	}
	return nil
}

// Replace the public export token, invalidating the old export URL.
func (p *Project) RegenerateToken(ctx context.Context, db bun.IDB) error {
	token := uuid.NewString()
	if _, err := db.NewUpdate().
		Model((*Project)(nil)).
		Set("public_token = ?", token).
		Where("id = ?", p.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Project).RegenerateToken: %w", err)
	}
	p.PublicToken = token
	return nil
}

func GetProject(ctx context.Context, db bun.IDB, projectID string) (*Project, error) {
	project := new(Project)
	if err := db.NewSelect().
		Model(project).
		Where("id = ?", projectID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("project not found", map[string]any{"project_id": projectID})
		}
		return nil, fmt.Errorf("GetProject: %w", err)
	}
	return project, nil
}

func GetProjectByToken(ctx context.Context, db bun.IDB, token string) (*Project, error) {
	project := new(Project)
	if err := db.NewSelect().
		Model(project).
		Where("public_token = ?", token).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("project not found", nil)
		}
		return nil, fmt.Errorf("GetProjectByToken: %w", err)
	}
	return project, nil
}
