package bearer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		want   string
		wantOK bool
	}{
		{name: "canonical", value: "Bearer abc.def.ghi", want: "abc.def.ghi", wantOK: true},
		{name: "lower case scheme", value: "bearer abc", want: "abc", wantOK: true},
		{name: "extra whitespace", value: "  Bearer \t abc  ", want: "abc", wantOK: true},
		{name: "empty", value: ""},
		{name: "scheme only", value: "Bearer"},
		{name: "scheme and spaces", value: "Bearer   "},
		{name: "basic auth", value: "Basic dXNlcjpwYXNz"},
		{name: "raw token", value: "abc.def.ghi"},
		{name: "glued scheme", value: "Bearerabc"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FromHeader(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "Bearer abc", Header("abc"))

	got, ok := FromHeader(Header("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", got)
}
