// Package genesis runs the genesis ceremony against the secret-store tier and
// distributes the resulting genesis blob to every validator node.
//
// The ceremony is a fixed sequence:
//
//	layout -> root key -> per-validator registration (in index order)
//	       -> finalize -> waypoints -> root key extraction -> distribution
//
// Per-validator registration is deliberately sequential: the registrations
// all mutate the shared layout namespace. Waypoints and distribution fan out.
package genesis
