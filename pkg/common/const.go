package common

// Cache key formats.
const (
	KEY_TA_SNAPSHOT   = "ta:%s"
	KEY_SCANNER_ROWS  = "scanner_rows"
	KEY_FEED_THROTTLE = "feed:%s:%s"
)

// Contract suffix used by KuCoin USDT-margined perpetuals.
const CONTRACT_SUFFIX = "USDTM"
