package solana

import "strings"

type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://localhost:8899"
)

// EnvironmentFromURL resolves the cluster monikers accepted by the Solana CLI
// (devnet, testnet, mainnet-beta, localhost, and their single letter forms).
// Anything else is assumed to already be an RPC URL.
func EnvironmentFromURL(url string) Environment {
	switch strings.ToLower(strings.TrimSpace(url)) {
	case "d", "devnet":
		return EnvironmentDev
	case "t", "testnet":
		return EnvironmentTest
	case "m", "mainnet-beta":
		return EnvironmentProd
	case "l", "localhost":
		return EnvironmentLocal
	}
	return Environment(strings.TrimSpace(url))
}
