package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
)

// BusinessEntity is a reporting dimension (a legal entity / business unit).
// Rows are created by the seed process; metric tables reference them by id
// and use id 0 as the "cross-entity aggregate" sentinel.
type BusinessEntity struct {
	ID       int    `gorm:"primary_key" json:"id"`
	Code     string `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Currency string `gorm:"size:10" json:"currency"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const businessEntityCacheKey = "businessEntities"

// ListBusinessEntities returns active entities, redis first then db.
func ListBusinessEntities(ctx context.Context) ([]*BusinessEntity, error) {
	var entities []*BusinessEntity
	exists, err := config.GetRedisObject(businessEntityCacheKey, &entities)
	if err != nil {
		return nil, err
	}
	if exists {
		return entities, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(businessEntityCacheKey, &entities, time.Hour); err != nil {
		return nil, err
	}
	return entities, nil
}

func GetBusinessEntity(ctx context.Context, id int) (*BusinessEntity, error) {
	var entity BusinessEntity
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func GetBusinessEntityByCode(ctx context.Context, code string) (*BusinessEntity, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New("entity code is required")
	}
	entities, err := ListBusinessEntities(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.Code == code {
			return e, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

// UpsertBusinessEntity is used by the seed binary only.
func UpsertBusinessEntity(ctx context.Context, code, name, currency string) (*BusinessEntity, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New("entity code is required")
	}
	db := config.GetDB()

	var entity BusinessEntity
	err := db.WithContext(ctx).Where("code = ?", code).Take(&entity).Error
	if err == nil {
		updates := map[string]interface{}{"name": name, "currency": currency, "is_active": true}
		if err := db.WithContext(ctx).Model(&entity).Updates(updates).Error; err != nil {
			return nil, err
		}
		_ = config.RemoveRedisKey(businessEntityCacheKey)
		return &entity, nil
	}

	entity = BusinessEntity{Code: code, Name: name, Currency: currency, IsActive: true}
	if err := db.WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(businessEntityCacheKey)
	return &entity, nil
}
