package dirstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionSet_Match(t *testing.T) {
	set := NewExtensionSet([]string{".txt", ".gz", ".tar.gz", "'.log'"})

	tests := []struct {
		path string
		ext  string
		ok   bool
	}{
		{"notes.txt", ".txt", true},
		{"dir/sub/notes.txt", ".txt", true},
		{"backup.tar.gz", ".tar.gz", true},
		{"data.json.gz", ".gz", true},
		{"app.log", ".log", true},
		{"NOTES.TXT", "", false},
		{"archive.tar", "", false},
		{".txt", "", false},
		{"README", "", false},
		{"trailing.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ext, ok := set.Match(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestExtensionSet_SingleSuffixOnly(t *testing.T) {
	set := NewExtensionSet([]string{".gz"})

	ext, ok := set.Match("backup.tar.gz")
	assert.True(t, ok)
	assert.Equal(t, ".gz", ext)
}

func TestExtensionSet_Empty(t *testing.T) {
	set := NewExtensionSet(nil)

	_, ok := set.Match("a.txt")
	assert.False(t, ok)
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.List())
}

func TestExtensionSet_ListSortedAndDeduplicated(t *testing.T) {
	set := NewExtensionSet([]string{".txt", ".csv", ".txt", ""})

	assert.Equal(t, []string{".csv", ".txt"}, set.List())
}
