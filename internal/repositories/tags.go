package repositories

import (
	"context"
	"fmt"

	"task-management-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Resolve returns one Tag row per distinct normalized name, creating the
// missing ones. Concurrent callers racing on the same new name both end up
// with the single row that won the unique index.
func (r *TagRepository) Resolve(ctx context.Context, names []string) ([]models.Tag, error) {
	names = models.NormalizeTagNames(names)
	if len(names) == 0 {
		return []models.Tag{}, nil
	}

	db := r.db.WithContext(ctx)

	var existing []models.Tag
	if err := db.Where("name IN ?", names).Order("name ASC").Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, tag := range existing {
		have[tag.Name] = struct{}{}
	}

	missing := make([]models.Tag, 0, len(names)-len(existing))
	for _, name := range names {
		if _, ok := have[name]; !ok {
			missing = append(missing, models.Tag{Name: name})
		}
	}
	if len(missing) == 0 {
		return existing, nil
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&missing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create tags: %w", err)
	}

	// IDs returned for ignored rows are not reliable, so read everything back.
	var tags []models.Tag
	if err := db.Where("name IN ?", names).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to reload tags: %w", err)
	}
	if len(tags) != len(names) {
		return nil, fmt.Errorf("resolved %d of %d tags", len(tags), len(names))
	}
	return tags, nil
}
