// Package vault implements the secret-store boundary on HashiCorp Vault's
// transit engine. Each validator's secret-store node runs its own Vault; key
// slots are transit keys and creating one that already exists is a no-op.
package vault
