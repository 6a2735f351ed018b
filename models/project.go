package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"gorm.io/gorm"
)

// Project is a reporting dimension. Unlike BusinessEntity it may be created
// lazily by the sync transformers when an upstream row names a project we
// have never seen.
type Project struct {
	ID               int    `gorm:"primary_key" json:"id"`
	Code             string `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name             string `gorm:"size:255;not null" json:"name"`
	BusinessEntityId int    `gorm:"index" json:"business_entity_id"`
	Status           string `gorm:"size:20;default:'Active'" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const projectCodeMaxLen = 12

func GetProject(ctx context.Context, id int) (*Project, error) {
	var project Project
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func FindProjectByName(ctx context.Context, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name is required")
	}
	var project Project
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		Take(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &project, nil
}

// GetOrCreateProjectByName resolves a project by case-insensitive name and
// creates it with a generated code on first sight. Concurrent workers may
// race on the insert; the unique code index decides and the loser re-reads.
func GetOrCreateProjectByName(ctx context.Context, name string, businessEntityId int) (*Project, error) {
	project, err := FindProjectByName(ctx, name)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	db := config.GetDB()
	code := utils.GenerateCode(name, projectCodeMaxLen)
	if code == "" {
		return nil, errors.New("project name yields empty code")
	}

	for attempt := 0; attempt < 5; attempt++ {
		candidate := code
		if attempt > 0 {
			suffix := fmt.Sprint(attempt + 1)
			runes := []rune(candidate)
			cut := projectCodeMaxLen - len(suffix)
			if cut < len(runes) {
				runes = runes[:cut]
			}
			candidate = string(runes) + suffix
		}

		created := Project{
			Code:             candidate,
			Name:             strings.TrimSpace(name),
			BusinessEntityId: businessEntityId,
			Status:           ProjectStatusActive,
		}
		err := db.WithContext(ctx).Create(&created).Error
		if err == nil {
			return &created, nil
		}
		if !IsDuplicateKeyError(err) {
			return nil, err
		}
		// Either another worker created the same project name, or the
		// generated code collides with a different project.
		if existing, ferr := FindProjectByName(ctx, name); ferr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("could not allocate a unique code for project %q", name)
}

// ProjectNamesByIds returns a display-name lookup for report joins.
func ProjectNamesByIds(ctx context.Context, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []Project
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("id IN ?", utils.UniqueSlice(ids)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
