package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		limit      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", "", 1, 20, 0},
		{"explicit", "3", "10", 3, 10, 20},
		{"page below one", "0", "10", 1, 10, 0},
		{"limit above max", "1", "500", 1, 100, 0},
		{"limit below min", "2", "0", 2, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.page, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("one", "")
	assert.Error(t, err)

	_, err = Parse("", "ten")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	p := &Params{Page: 1, Limit: 2}
	assert.Equal(t, 3, p.Probe())

	page := Build(p, []int{1, 2, 3})
	assert.True(t, page.HasMore)
	assert.Equal(t, []int{1, 2}, page.Data)

	page = Build(p, []int{1})
	assert.False(t, page.HasMore)
	assert.Equal(t, []int{1}, page.Data)

	page = Build[int](p, nil)
	assert.Equal(t, []int{}, page.Data)
}
