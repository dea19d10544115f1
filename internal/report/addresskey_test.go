package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressKey(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{
			name:    "lowercases and joins words",
			address: "1600 Amphitheatre Pkwy, Mountain View, CA",
			want:    "1600_amphitheatre_pkwy_mountain_view_ca",
		},
		{
			name:    "punctuation and casing do not change the key",
			address: "1600 AMPHITHEATRE PKWY, MOUNTAIN VIEW, CA!!",
			want:    "1600_amphitheatre_pkwy_mountain_view_ca",
		},
		{
			name:    "hyphens collapse with whitespace",
			address: "12-14 Main - Street",
			want:    "12_14_main_street",
		},
		{
			name:    "leading and trailing separators are trimmed",
			address: "  --Main St--  ",
			want:    "main_st",
		},
		{
			name:    "only symbols yields empty key",
			address: "!!! ??? ...",
			want:    "",
		},
		{
			name:    "empty input yields empty key",
			address: "",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressKey(tt.address))
		})
	}
}

func TestAddressKeyDeterministic(t *testing.T) {
	addr := "742 Evergreen Terrace, Springfield"
	first := AddressKey(addr)
	for range 10 {
		assert.Equal(t, first, AddressKey(addr))
	}
}

func TestAddressKeyCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	key := AddressKey(long)
	assert.Len(t, key, 200)
}
