// Package netaddr builds and parses the multiaddr endpoints that validators
// advertise in the genesis layout, e.g. /ip4/10.0.0.5/tcp/6180.
package netaddr
