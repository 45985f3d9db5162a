package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{"validate-questionnaire-step", "submit-loan-lead", "present-loan-offers", "record-loan-lead"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		v, err := a.InputValidator()
		require.NoError(t, err)
		assert.NotNil(t, v, taskType)
	}

	a, _ := reg.Find("record-loan-lead")
	d, err := a.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
	assert.Contains(t, a.ErrorCodes, "DUPLICATE_LEAD")
}

func TestFind_Unknown(t *testing.T) {
	reg := &ActivityRegistry{}
	_, ok := reg.Find("nope-nope")
	assert.False(t, ok)
}

func TestValidate_Failures(t *testing.T) {
	valid := func() Activity {
		return Activity{ID: "a", DisplayName: "A", Category: "loan", TaskType: "do-thing"}
	}

	tests := []struct {
		name   string
		mutate func(*ActivityRegistry)
		want   string
	}{
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"missing id", func(r *ActivityRegistry) { r.Activities[0].ID = "" }, "ID"},
		{"duplicate id", func(r *ActivityRegistry) {
			b := valid()
			b.TaskType = "other-thing"
			r.Activities = append(r.Activities, b)
		}, "duplicate activity ID"},
		{"duplicate task type", func(r *ActivityRegistry) {
			b := valid()
			b.ID = "b"
			r.Activities = append(r.Activities, b)
		}, "duplicate task type"},
		{"bad task type", func(r *ActivityRegistry) { r.Activities[0].TaskType = "Thing" }, "kebab-case"},
		{"missing category", func(r *ActivityRegistry) { r.Activities[0].Category = "" }, "Category"},
		{"bad schema", func(r *ActivityRegistry) {
			r.Activities[0].InputSchema = map[string]interface{}{"type": 7}
		}, "invalid schema"},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "soon" }, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: []Activity{valid()}}
			tt.mutate(reg)
			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	reg := &ActivityRegistry{Version: "1.0.0", Activities: []Activity{{ID: "a", DisplayName: "A", Category: "loan", TaskType: "do-thing"}}}
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, Save(reg, path, now))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00Z", loaded.LastUpdated)
	assert.Equal(t, "do-thing", loaded.Activities[0].TaskType)
}
