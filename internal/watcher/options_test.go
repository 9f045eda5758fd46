package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, 100*time.Millisecond, opts.SettleDelay)
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
	assert.Contains(t, opts.IgnorePatterns, "*.tmp")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{
		IgnoreHidden:   true,
		IgnorePatterns: []string{"*.tmp", ".DS_Store", "*.bak"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"hidden file", "/data/.hidden", true},
		{"hidden directory", "/data/.git/config", true},
		{"DS_Store", "/data/.DS_Store", true},
		{"tmp file", "/data/file.tmp", true},
		{"bak file", "/data/file.bak", true},
		{"database", "/data/tagnotes.db", false},
		{"wal", "/data/tagnotes.db-wal", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_ShouldIgnore_Names(t *testing.T) {
	opts := Options{
		IgnorePatterns: []string{},
		Names:          []string{"tagnotes.db", "tagnotes.db-wal"},
	}
	opts.setDefaults()

	assert.False(t, opts.shouldIgnore("/data/tagnotes.db"))
	assert.False(t, opts.shouldIgnore("/data/tagnotes.db-wal"))
	assert.True(t, opts.shouldIgnore("/data/tagnotes.db-shm"))
	assert.True(t, opts.shouldIgnore("/data/session/000001.vlog"))
}

func TestOptions_ShouldIgnore_NoIgnoreHidden(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		IgnorePatterns: []string{},
	}
	opts.setDefaults()

	assert.False(t, opts.shouldIgnore("/data/.hidden"), "Should not ignore hidden when disabled")
	assert.False(t, opts.shouldIgnore("/data/tagnotes.db"))
}
