package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantLimit  int
		wantOffset int
	}{
		{"defaults when absent", "/v1/messages", 50, 0},
		{"explicit values pass through", "/v1/messages?limit=25&offset=75", 25, 75},
		{"limit above the cap falls back", "/v1/messages?limit=5000", 50, 0},
		{"zero limit falls back", "/v1/messages?limit=0", 50, 0},
		{"negative offset clamps to zero", "/v1/messages?offset=-3", 50, 0},
		{"garbage falls back", "/v1/messages?limit=abc&offset=xyz", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePagination(httptest.NewRequest("GET", tt.url, nil))
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}
