package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_Order(t *testing.T) {
	assert.Equal(t, []string{"Auth", "Postgrest", "EdgeFunctions", "Secrets", "Postgres"}, Names(All()))
	assert.Equal(t, []string{"auth", "postgrest", "edge_functions", "secrets", "postgres"}, Flags())
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	assert.Equal(t, "Auth", All()[0].Name)
}

func TestPath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Auth", want: "/projects/abc/config/auth"},
		{name: "Postgrest", want: "/projects/abc/postgrest"},
		{name: "EdgeFunctions", want: "/projects/abc/functions"},
		{name: "Secrets", want: "/projects/abc/secrets"},
		{name: "Postgres", want: "/projects/abc/config/database/postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Path("abc"))
		})
	}
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("edge_functions")
	require.True(t, ok)
	assert.Equal(t, "EdgeFunctions", c.Name)
	assert.Equal(t, "functions", c.Label)

	c, ok = Lookup("secrets")
	require.True(t, ok)
	assert.Equal(t, "Secrets", c.Name)

	_, ok = Lookup("storage")
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	selected := Select(map[string]bool{
		"postgres": true,
		"auth":     true,
		"secrets":  false,
		"storage":  true,
	})
	assert.Equal(t, []string{"Auth", "Postgres"}, Names(selected))
	assert.Empty(t, Select(nil))
}
