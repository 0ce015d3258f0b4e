package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-proxytun/proxytun/core/net/address"
)

func TestSystemResolver_LiteralPassthrough(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  address.Type
	}{
		{"ipv4", "127.0.0.1", address.TypeIPv4},
		{"ipv6", "::1", address.TypeIPv6},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewSystemResolver()
			h, err := r.Resolve(context.Background(), tc.input, FamilyAny)
			require.NoError(t, err)
			assert.Equal(t, tc.want, h.Type)
			assert.Equal(t, tc.input, h.String())
		})
	}
}
