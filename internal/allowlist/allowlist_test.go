package allowlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowsHost(t *testing.T) {
	l := New([]string{"hooks.automator.io", ".relay.co", " Spaced.Example "})

	cases := []struct {
		host string
		want bool
	}{
		{"hooks.automator.io", true},
		{"HOOKS.AUTOMATOR.IO", true},
		{"evil-hooks.automator.io.attacker.net", false},
		{"hook.relay.co", true},
		{"eu.hook.relay.co", true},
		{"relay.co", false},
		{"hook.relay.co.evil.com", false},
		{"spaced.example", true},
		{"", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, l.AllowsHost(c.host), "host %q", c.host)
	}
}

func TestValidateURL(t *testing.T) {
	l := New([]string{".relay.co"})

	require.NoError(t, l.ValidateURL("https://hook.relay.co/jobs"))
	require.ErrorIs(t, l.ValidateURL("https://hook.relay.co.evil.com/jobs"), ErrHostNotAllowed)
	require.Error(t, l.ValidateURL("ftp://hook.relay.co/jobs"))
	require.Error(t, l.ValidateURL("://not-a-url"))
}
