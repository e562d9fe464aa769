package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageDefaults(t *testing.T) {
	p := ParsePage(url.Values{})
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}

func TestParsePageValues(t *testing.T) {
	p := ParsePage(url.Values{"page": {"3"}, "per_page": {"25"}})
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PerPage)
	assert.Equal(t, 50, p.Offset())
}

func TestParsePageClampsAndIgnoresGarbage(t *testing.T) {
	p := ParsePage(url.Values{"page": {"-1"}, "per_page": {"9999"}})
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, MaxPerPage, p.PerPage)

	p = ParsePage(url.Values{"page": {"abc"}, "per_page": {"abc"}})
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
}

func TestNewPageResultNormalizesNil(t *testing.T) {
	res := NewPageResult[string](nil, Page{Page: 2, PerPage: 10}, 42)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 10, res.PerPage)
	assert.Equal(t, int64(42), res.Total)
}
