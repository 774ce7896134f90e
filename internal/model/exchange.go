package model

import "strings"

// commodityExchange maps futures commodity codes to their listing exchange.
// Covers the Shanghai, Dalian, Zhengzhou and financial futures exchanges
// plus the Shanghai energy exchange.
var commodityExchange = map[string]string{
	// SHFE
	"cu": "SHFE", "al": "SHFE", "zn": "SHFE", "pb": "SHFE", "ni": "SHFE", "sn": "SHFE",
	"au": "SHFE", "ag": "SHFE", "rb": "SHFE", "hc": "SHFE", "ss": "SHFE",
	"bu": "SHFE", "fu": "SHFE", "sp": "SHFE", "wr": "SHFE",
	// DCE
	"m": "DCE", "y": "DCE", "p": "DCE", "l": "DCE", "v": "DCE", "c": "DCE",
	"a": "DCE", "b": "DCE", "j": "DCE", "jm": "DCE", "i": "DCE",
	"jd": "DCE", "fb": "DCE", "bb": "DCE", "pp": "DCE", "cs": "DCE",
	// CZCE
	"CF": "CZCE", "SR": "CZCE", "TA": "CZCE", "OI": "CZCE", "MA": "CZCE",
	"FG": "CZCE", "RM": "CZCE", "ZC": "CZCE", "CY": "CZCE", "AP": "CZCE",
	"UR": "CZCE", "SA": "CZCE", "PF": "CZCE", "PK": "CZCE", "CJ": "CZCE",
	"RS": "CZCE", "RR": "CZCE", "LR": "CZCE", "WH": "CZCE", "PM": "CZCE",
	"RI": "CZCE", "JR": "CZCE", "SM": "CZCE", "SF": "CZCE", "LH": "CZCE",
	// INE
	"sc": "INE", "nr": "INE", "bc": "INE", "lu": "INE",
	// CFFEX
	"IF": "CFFEX", "IC": "CFFEX", "IH": "CFFEX", "IM": "CFFEX",
	"TS": "CFFEX", "TF": "CFFEX", "T": "CFFEX",
}

// CommodityCode strips the numeric month part from a contract symbol,
// e.g. "rb2401" -> "rb", "SR405" -> "SR".
func CommodityCode(symbol string) string {
	var sb strings.Builder
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// InferExchange determines the listing exchange for a contract symbol.
// Returns "" when the commodity code is unknown.
func InferExchange(symbol string) string {
	return commodityExchange[CommodityCode(symbol)]
}
