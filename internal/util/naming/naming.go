package naming

import "fmt"

// Naming functions for testnet slots.
// Every slot maps to exactly one pod and one allocated node.

func Validator(index int) string {
	return fmt.Sprintf("validator-%d", index)
}

func Fullnode(validatorIndex, fullnodeIndex int) string {
	return fmt.Sprintf("fullnode-%d-%d", validatorIndex, fullnodeIndex)
}

func SigningProxy(index int) string {
	return fmt.Sprintf("signer-%d", index)
}

func SecretStore(index int) string {
	return fmt.Sprintf("vault-%d", index)
}

// Key returns the secret-store key slot name for an identity, e.g. validator-0__owner.
func Key(identity, key string) string {
	return fmt.Sprintf("%s__%s", identity, key)
}

func PoolServer(pool string, index int) string {
	return fmt.Sprintf("%s-%d", pool, index)
}

func WipeJob(slot string) string {
	return fmt.Sprintf("wipe-%s", slot)
}

func CopyJob(container string, seq int) string {
	return fmt.Sprintf("copy-%s-%d", container, seq)
}
