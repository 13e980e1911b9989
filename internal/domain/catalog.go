package domain

// LamportsPerSOL is the number of minor units in one SOL.
const LamportsPerSOL int64 = 1_000_000_000

// Package is a single priced offering inside a service.
type Package struct {
	Key      string
	Label    string
	Lamports int64 // base price in lamports
}

// Service groups the packages a user can buy for one kind of promotion.
type Service struct {
	Key         string
	Label       string
	Description string
	Packages    []Package
}

// Catalog is static: service -> package -> price. Prices are quoted in SOL
// in the labels and carried in lamports for verification.
var Catalog = []Service{
	{
		Key:   "holders",
		Label: "📈 Holder Boost",
		Description: "I can help you get more holders for your Solana token.\n" +
			"Pick a package and we distribute your token to fresh wallets.",
		Packages: []Package{
			{Key: "holders_50", Label: "📦 50 Holders", Lamports: 500_000_000},
			{Key: "holders_400", Label: "🚀 400 Holders", Lamports: 1_800_000_000},
			{Key: "holders_700", Label: "🌟 700 Holders", Lamports: 3_000_000_000},
			{Key: "holders_1000", Label: "🔥 1000 Holders", Lamports: 3_800_000_000},
		},
	},
	{
		Key:   "feature",
		Label: "💎 DEX Feature",
		Description: "Get your token featured on DexScreener / Pump.fun.\n" +
			"Maximum visibility while the listing is live.",
		Packages: []Package{
			{Key: "feature_dex", Label: "💎 DexScreener/Pump.fun Feature", Lamports: 6_000_000_000},
		},
	},
}

// FindService returns the catalog entry for the given service key.
func FindService(key string) (*Service, bool) {
	for i := range Catalog {
		if Catalog[i].Key == key {
			return &Catalog[i], true
		}
	}
	return nil, false
}

// FindPackage returns a package by service and package key.
func FindPackage(serviceKey, packageKey string) (*Package, bool) {
	svc, ok := FindService(serviceKey)
	if !ok {
		return nil, false
	}
	for i := range svc.Packages {
		if svc.Packages[i].Key == packageKey {
			return &svc.Packages[i], true
		}
	}
	return nil, false
}
