package s3

import "github.com/imamik/ledgerlab/internal/config"

func configFor(endpoint string) config.ArchiveConfig {
	return config.ArchiveConfig{
		Enabled:   true,
		Bucket:    "ledger-runs",
		Endpoint:  endpoint,
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		PathStyle: true,
	}
}
