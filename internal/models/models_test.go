package models_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"task-management-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestNormalizeTagNames(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"trims and lowercases", []string{"Work", " urgent "}, []string{"work", "urgent"}},
		{"drops case variants", []string{"Work", "work", "WORK "}, []string{"work"}},
		{"drops empties", []string{"", "   ", "home"}, []string{"home"}},
		{"nil input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.NormalizeTagNames(tt.input))
		})
	}
}

func TestValidTagName(t *testing.T) {
	assert.True(t, models.ValidTagName("  "+strings.Repeat("a", 100)+"\t"))
	assert.True(t, models.ValidTagName(strings.Repeat(" ", 150)))
	assert.True(t, models.ValidTagName(strings.Repeat("é", 100)))
	assert.False(t, models.ValidTagName(strings.Repeat("a", 101)))
}

func TestParseTagList(t *testing.T) {
	assert.Nil(t, models.ParseTagList("  "))
	assert.Equal(t, []string{"work", "urgent"}, models.ParseTagList("work, Urgent,,work"))
}

func TestOptional_UnmarshalJSON(t *testing.T) {
	var body struct {
		Title       models.Optional[string]   `json:"title"`
		Description models.Optional[string]   `json:"description"`
		Priority    models.Optional[int]      `json:"priority"`
		Tags        models.Optional[[]string] `json:"tags"`
	}

	err := json.Unmarshal([]byte(`{"title":"C","description":null,"tags":[]}`), &body)
	require.NoError(t, err)

	assert.True(t, body.Title.HasValue())
	assert.Equal(t, "C", body.Title.Value)

	assert.True(t, body.Description.Set)
	assert.True(t, body.Description.Null)
	assert.False(t, body.Description.HasValue())

	assert.False(t, body.Priority.Set)

	assert.True(t, body.Tags.HasValue())
	assert.Empty(t, body.Tags.Value)
}

func TestOptional_UnmarshalTypeError(t *testing.T) {
	var body struct {
		Priority models.Optional[int] `json:"priority"`
	}

	err := json.Unmarshal([]byte(`{"priority":"high"}`), &body)

	var typeErr *json.UnmarshalTypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestOptional_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(models.Some(3))
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(data))

	data, err = json.Marshal(models.Null[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(data))
}

func TestTaskFilter_Validate(t *testing.T) {
	zero, six := 0, 6

	assert.Nil(t, models.TaskFilter{Limit: 10}.Validate())

	fields := models.TaskFilter{Priority: &zero, Limit: 0, Offset: -1}.Validate()
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "limit")
	assert.Contains(t, fields, "offset")

	fields = models.TaskFilter{Priority: &six, Limit: 101}.Validate()
	assert.Contains(t, fields, "priority")
	assert.Contains(t, fields, "limit")
}

func TestTask_Accessors(t *testing.T) {
	task := models.Task{
		Title:   "Test Task",
		DueDate: datatypes.Date(time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)),
		Tags:    []models.Tag{{ID: 1, Name: "home"}, {ID: 2, Name: "work"}},
	}

	assert.Equal(t, "2030-03-04", task.DueDateString())
	assert.Equal(t, []string{"home", "work"}, task.TagNames())
	assert.Equal(t, []string{}, (&models.Task{}).TagNames())
}
