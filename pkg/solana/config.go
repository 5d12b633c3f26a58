package solana

type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

// DevnetEndpoints is the default pool of public devnet RPC nodes that calls
// are spread across.
var DevnetEndpoints = []string{
	string(EnvironmentDev),
	"https://rpc.ankr.com/solana_devnet",
	"https://devnet.helius-rpc.com",
}
