package service

import (
	"poseidon/pkg/common"
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)

// NormalizeSymbol turns user input like "btc", "BTC-USDT" or "XBTUSDTM" into the
// exchange base ("XBT") and contract ("XBTUSDTM"). ok is false for malformed input.
func NormalizeSymbol(input string) (base string, contract string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.NewReplacer("-", "", "/", "", "_", "", " ", "").Replace(s)
	s = strings.TrimSuffix(s, common.CONTRACT_SUFFIX)
	s = strings.TrimSuffix(s, "USDT")
	if s == "BTC" {
		s = "XBT"
	}
	if !symbolPattern.MatchString(s) {
		return "", "", false
	}
	return s, s + common.CONTRACT_SUFFIX, true
}

func compileDenylist(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func denied(list []*regexp.Regexp, base string) bool {
	for _, re := range list {
		if re.MatchString(base) {
			return true
		}
	}
	return false
}
