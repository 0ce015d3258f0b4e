package address

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSOCKS5_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		host HostSpec
	}{
		{"ipv4", IPv4Host(net.ParseIP("10.0.0.5"))},
		{"ipv6", IPv6Host(net.ParseIP("2001:db8::1"))},
		{"domain", DomainHost("example.test")},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := EncodeSOCKS5(tc.host)
			require.NoError(t, err)

			atyp := encoded[0]
			payload := encoded[1:]
			if atyp == ATYPDomain {
				payload = payload[1:] // strip the length octet DecodeSOCKS5 does not expect
			}

			decoded, err := DecodeSOCKS5(atyp, payload)
			require.NoError(t, err)
			assert.Equal(t, tc.host.Type, decoded.Type)
			assert.Equal(t, tc.host.String(), decoded.String())
		})
	}
}

func TestEncodeSOCKS5_DomainTooLong(t *testing.T) {
	t.Parallel()

	h := DomainHost(string(make([]byte, 256)))
	_, err := EncodeSOCKS5(h)
	assert.Error(t, err)
}

func TestEncodeSOCKS5_DomainEmpty(t *testing.T) {
	t.Parallel()

	_, err := EncodeSOCKS5(DomainHost(""))
	assert.Error(t, err)
}

func TestHostFromString_LiteralVsDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  Type
	}{
		{"ipv4 literal", "127.0.0.1", TypeIPv4},
		{"ipv6 literal", "::1", TypeIPv6},
		{"domain", "example.test", TypeDomain},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, HostFromString(tc.input).Type)
		})
	}
}

func TestEncodeSOCKS4_PlaceholderForSocks4a(t *testing.T) {
	t.Parallel()

	ip, err := EncodeSOCKS4(DomainHost("example.test"), true)
	require.NoError(t, err)
	assert.True(t, IsSocks4aPlaceholder(ip))
}

func TestEncodeSOCKS4_RejectsNonIPv4WithoutSocks4a(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		host HostSpec
	}{
		{"domain", DomainHost("example.test")},
		{"ipv6", IPv6Host(net.ParseIP("::1"))},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := EncodeSOCKS4(tc.host, false)
			assert.Error(t, err)
		})
	}
}

func TestAddressLen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, net.IPv4len, AddressLen(ATYPIPv4))
	assert.Equal(t, net.IPv6len, AddressLen(ATYPIPv6))
	assert.Equal(t, -1, AddressLen(ATYPDomain))
}
