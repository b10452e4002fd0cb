package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Kind
// ---------------------------------------------------------------------------

func TestKindString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestKindEncoding(t *testing.T) {
	// The integer values cross process boundaries; they must not drift.
	assert.Equal(t, 1, int(Added))
	assert.Equal(t, 2, int(Modified))
	assert.Equal(t, 3, int(Deleted))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"added", Added, false},
		{"modified", Modified, false},
		{"deleted", Deleted, false},
		{"renamed", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// ChangeSet
// ---------------------------------------------------------------------------

func TestChangeSet_DuplicatesCollapse(t *testing.T) {
	s := make(ChangeSet)

	s.Add(Change{Kind: Added, Path: "/tmp/a.txt"})
	s.Add(Change{Kind: Added, Path: "/tmp/a.txt"})
	s.Add(Change{Kind: Added, Path: "/tmp/a.txt"})

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has(Change{Kind: Added, Path: "/tmp/a.txt"}))
}

func TestChangeSet_DistinctKindsSamePathKept(t *testing.T) {
	s := make(ChangeSet)

	s.Add(Change{Kind: Added, Path: "/tmp/a.txt"})
	s.Add(Change{Kind: Modified, Path: "/tmp/a.txt"})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(Change{Kind: Added, Path: "/tmp/a.txt"}))
	assert.True(t, s.Has(Change{Kind: Modified, Path: "/tmp/a.txt"}))
}

func TestChangeSet_Sorted(t *testing.T) {
	s := make(ChangeSet)
	s.Add(Change{Kind: Modified, Path: "/b"})
	s.Add(Change{Kind: Deleted, Path: "/a"})
	s.Add(Change{Kind: Added, Path: "/a"})

	got := s.Sorted()
	require.Len(t, got, 3)
	assert.Equal(t, Change{Kind: Added, Path: "/a"}, got[0])
	assert.Equal(t, Change{Kind: Deleted, Path: "/a"}, got[1])
	assert.Equal(t, Change{Kind: Modified, Path: "/b"}, got[2])
}

func TestChangeString(t *testing.T) {
	c := Change{Kind: Deleted, Path: "/tmp/gone.txt"}
	assert.Equal(t, "deleted /tmp/gone.txt", c.String())
}
