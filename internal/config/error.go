package config

import "errors"

var (
	errInvalidConfigFile  = errors.New("invalid config file")
	errEmptyProxies       = errors.New("proxies is empty, chain must contain at least one proxy")
	errMissingDestination = errors.New("destination.address is empty")
	errUnknownProxyKind   = errors.New("proxies[].kind must be one of: socks5, socks4, http")
	errUnknownRDNS        = errors.New("proxies[].rdns must be one of: \"\", \"true\", \"false\"")
)
