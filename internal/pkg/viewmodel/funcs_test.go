package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPager(t *testing.T) {
	tests := []struct {
		url      string
		page     int
		total    int
		wantPrev string
		wantNext string
	}{
		{url: "/consumer/payments?status=SUCCESS&page=2", page: 2, total: 3,
			wantPrev: "/consumer/payments?page=1&status=SUCCESS", wantNext: "/consumer/payments?page=3&status=SUCCESS"},
		{url: "/admin/users", page: 1, total: 2, wantNext: "/admin/users?page=2"},
		{url: "/admin/users?page=2", page: 2, total: 2, wantPrev: "/admin/users?page=1"},
		{url: "/admin/users", page: 1, total: 1},
	}
	for _, tt := range tests {
		p := NewPager(Layout{URL: tt.url}, tt.page, tt.total)
		if p.PrevURL != tt.wantPrev || p.NextURL != tt.wantNext {
			t.Fatalf("NewPager(%q, %d, %d) = %q / %q, want %q / %q",
				tt.url, tt.page, tt.total, p.PrevURL, p.NextURL, tt.wantPrev, tt.wantNext)
		}
	}
}

func TestFuncsRegistered(t *testing.T) {
	f := Funcs()
	assert.Contains(t, f, "pager")
	assert.True(t, f["hasSuffix"].(func(string, string) bool)("signatory.panDocument", "Document"))
}
