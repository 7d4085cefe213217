package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermits_TotalOrder(t *testing.T) {
	levels := []PermissionLevel{
		PermissionReadOnly,
		PermissionReadExecute,
		PermissionReadExecuteWrite,
		PermissionAdmin,
	}
	for _, held := range levels {
		for _, required := range levels {
			got := Permits(held, required)
			want := held >= required
			assert.Equal(t, want, got, "held=%s required=%s", held, required)
		}
	}
}

func TestPermits_InvalidDenies(t *testing.T) {
	assert.False(t, Permits(PermissionLevel(-1), PermissionReadOnly))
	assert.False(t, Permits(PermissionAdmin, PermissionLevel(42)))
	assert.False(t, Permits(PermissionLevel(-1), PermissionLevel(99)))
}

func TestParsePermissionLevel(t *testing.T) {
	cases := map[string]PermissionLevel{
		"read_only":            PermissionReadOnly,
		"readonly":             PermissionReadOnly,
		"READ_EXECUTE":         PermissionReadExecute,
		" read_execute_write ": PermissionReadExecuteWrite,
		"Admin":                PermissionAdmin,
	}
	for in, want := range cases {
		got, err := ParsePermissionLevel(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParsePermissionLevel("superuser")
	require.Error(t, err)
}

func TestPermissionLevel_StringRoundTrip(t *testing.T) {
	for _, l := range []PermissionLevel{PermissionReadOnly, PermissionReadExecute, PermissionReadExecuteWrite, PermissionAdmin} {
		parsed, err := ParsePermissionLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
}

func TestCheckPermission(t *testing.T) {
	require.NoError(t, CheckPermission(PermissionAdmin, PermissionReadExecuteWrite, "evaluate_model"))

	err := CheckPermission(PermissionReadExecute, PermissionAdmin, "admin_reload")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPermissionDenied))
	assert.Contains(t, err.Error(), "admin_reload")
}
