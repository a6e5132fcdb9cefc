// Package naming provides consistent naming functions for testnet slots and resources.
//
// Slot names follow the pattern {role}-{index} for validators, signing proxies and
// secret stores, and fullnode-{validator}-{index} for fullnodes. Names are derived
// from indices only, so the order in which slots are allocated never changes the
// resulting topology. Pool servers follow {pool}-{index}.
package naming
