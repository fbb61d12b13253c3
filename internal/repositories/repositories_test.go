package repositories_test

import (
	"context"
	"testing"
	"time"

	"task-management-api/internal/database"
	"task-management-api/internal/models"
	"task-management-api/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(database.MemoryPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, repositories.Migrate(pool.DB))
	return pool.DB
}

var baseTime = time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

func newTask(title string, priority int, completed bool, offset time.Duration) *models.Task {
	at := baseTime.Add(offset)
	return &models.Task{
		Title:     title,
		Priority:  priority,
		DueDate:   datatypes.Date(time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)),
		Completed: completed,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func createTask(t *testing.T, db *gorm.DB, task *models.Task, tags ...string) *models.Task {
	t.Helper()
	ctx := context.Background()

	resolved, err := repositories.NewTagRepository(db).Resolve(ctx, tags)
	require.NoError(t, err)
	task.Tags = resolved

	require.NoError(t, repositories.NewTaskRepository(db).Create(ctx, task))
	require.NotZero(t, task.ID)
	return task
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, repositories.Migrate(db))

	for _, table := range []string{"tasks", "tags", "task_tags"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Tag{}, "ux_tags_name"))
	assert.True(t, db.Migrator().HasIndex(&models.Task{}, "ix_tasks_deleted_completed"))
}

func TestTagRepository_Resolve(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTagRepository(db)
	ctx := context.Background()

	first, err := repo.Resolve(ctx, []string{"Work", " urgent", "work"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "urgent", first[0].Name)
	assert.Equal(t, "work", first[1].Name)

	second, err := repo.Resolve(ctx, []string{"WORK", "home"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "home", second[0].Name)
	assert.Equal(t, first[1].ID, second[1].ID, "existing tag must be reused")

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	empty, err := repo.Resolve(ctx, []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTaskRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTaskRepository(db)

	created := createTask(t, db, newTask("Write report", 2, false, 0), "work", "alpha")

	found, err := repo.FindActive(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", found.Title)
	assert.Equal(t, 2, found.Priority)
	assert.Equal(t, "2030-06-01", found.DueDateString())
	assert.ElementsMatch(t, []string{"alpha", "work"}, found.TagNames())
	assert.Nil(t, found.Description)

	_, err = repo.FindActive(context.Background(), 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTaskRepository(db)
	ctx := context.Background()

	a := createTask(t, db, newTask("A", 1, false, 1*time.Minute), "work", "urgent")
	b := createTask(t, db, newTask("B", 3, true, 2*time.Minute), "work")
	c := createTask(t, db, newTask("C", 3, false, 3*time.Minute), "home")
	d := createTask(t, db, newTask("D", 5, false, 4*time.Minute))

	deleted, err := repo.SoftDelete(ctx, d.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, deleted)

	yes, no := true, false
	three := 3

	tests := []struct {
		name     string
		filter   models.TaskFilter
		expected []uint
		total    int64
	}{
		{"all active newest first", models.TaskFilter{Limit: 10}, []uint{c.ID, b.ID, a.ID}, 3},
		{"completed", models.TaskFilter{Completed: &yes, Limit: 10}, []uint{b.ID}, 1},
		{"not completed", models.TaskFilter{Completed: &no, Limit: 10}, []uint{c.ID, a.ID}, 2},
		{"priority", models.TaskFilter{Priority: &three, Limit: 10}, []uint{c.ID, b.ID}, 2},
		{"tags any match counted once", models.TaskFilter{Tags: []string{"work", "urgent"}, Limit: 10}, []uint{b.ID, a.ID}, 2},
		{"tags or", models.TaskFilter{Tags: []string{"urgent", "home"}, Limit: 10}, []uint{c.ID, a.ID}, 2},
		{"unknown tag", models.TaskFilter{Tags: []string{"nope"}, Limit: 10}, []uint{}, 0},
		{"combined", models.TaskFilter{Tags: []string{"work"}, Completed: &no, Limit: 10}, []uint{a.ID}, 1},
		{"paged", models.TaskFilter{Limit: 1, Offset: 1}, []uint{b.ID}, 3},
		{"offset past end", models.TaskFilter{Limit: 10, Offset: 50}, []uint{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, total, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)

			ids := make([]uint, 0, len(tasks))
			for _, task := range tasks {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}

	tasks, _, err := repo.List(ctx, models.TaskFilter{Tags: []string{"urgent"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.ElementsMatch(t, []string{"urgent", "work"}, tasks[0].TagNames(), "all tags are returned, not just the matching one")
}

func TestTaskRepository_UpdateAndReplaceTags(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTaskRepository(db)
	tagRepo := repositories.NewTagRepository(db)
	ctx := context.Background()

	task := createTask(t, db, newTask("Old", 2, false, 0), "work")

	matched, err := repo.Update(ctx, task.ID, map[string]interface{}{"title": "New", "completed": true})
	require.NoError(t, err)
	assert.True(t, matched)

	tags, err := tagRepo.Resolve(ctx, []string{"home"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceTags(ctx, task.ID, tags))

	found, err := repo.FindActive(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", found.Title)
	assert.True(t, found.Completed)
	assert.Equal(t, []string{"home"}, found.TagNames())

	require.NoError(t, repo.ReplaceTags(ctx, task.ID, nil))
	found, err = repo.FindActive(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Tags)

	matched, err = repo.Update(ctx, 9999, map[string]interface{}{"title": "x"})
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestTaskRepository_SoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTaskRepository(db)
	ctx := context.Background()

	task := createTask(t, db, newTask("Doomed", 1, false, 0), "work")

	deleted, err := repo.SoftDelete(ctx, task.ID, baseTime)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.SoftDelete(ctx, task.ID, baseTime)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting twice is a miss")

	_, err = repo.FindActive(ctx, task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	matched, err := repo.Update(ctx, task.ID, map[string]interface{}{"title": "revived"})
	require.NoError(t, err)
	assert.False(t, matched, "deleted tasks cannot be updated")

	var row models.Task
	require.NoError(t, db.First(&row, task.ID).Error)
	assert.True(t, row.IsDeleted, "row is retained")
}

func TestTaskRepository_PurgeDeleted(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewTaskRepository(db)
	ctx := context.Background()

	old := createTask(t, db, newTask("old", 1, false, 0), "work")
	recent := createTask(t, db, newTask("recent", 1, false, 0), "work")
	active := createTask(t, db, newTask("active", 1, false, 0), "work")

	_, err := repo.SoftDelete(ctx, old.ID, baseTime)
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, recent.ID, baseTime.Add(48*time.Hour))
	require.NoError(t, err)

	purged, err := repo.PurgeDeleted(ctx, baseTime.Add(24*time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	var remaining int64
	require.NoError(t, db.Model(&models.Task{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)

	var links int64
	require.NoError(t, db.Model(&models.TaskTag{}).Where("task_id = ?", old.ID).Count(&links).Error)
	assert.Zero(t, links)

	var tags int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tags).Error)
	assert.EqualValues(t, 1, tags, "tags survive purges")

	_, err = repo.FindActive(ctx, active.ID)
	require.NoError(t, err)

	n, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
