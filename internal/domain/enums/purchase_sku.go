package enums

import (
	"fmt"
	"strings"
)

type PurchaseSKU string

const (
	PurchaseSKUSilver1m        PurchaseSKU = "silver_1m"
	PurchaseSKUGold1m          PurchaseSKU = "gold_1m"
	PurchaseSKUVIP1m           PurchaseSKU = "vip_1m"
	PurchaseSKUBoostPack3      PurchaseSKU = "boost_pack_3"
	PurchaseSKUSuperLikePack10 PurchaseSKU = "superlike_pack_10"
	PurchaseSKUUnlockPack5     PurchaseSKU = "unlock_pack_5"
)

func (s PurchaseSKU) Known() bool {
	switch s {
	case PurchaseSKUSilver1m, PurchaseSKUGold1m, PurchaseSKUVIP1m,
		PurchaseSKUBoostPack3, PurchaseSKUSuperLikePack10, PurchaseSKUUnlockPack5:
		return true
	default:
		return false
	}
}

func ParsePurchaseSKU(raw string) (PurchaseSKU, error) {
	sku := PurchaseSKU(strings.ToLower(strings.TrimSpace(raw)))
	if !sku.Known() {
		return "", fmt.Errorf("unknown purchase sku %q", raw)
	}
	return sku, nil
}
