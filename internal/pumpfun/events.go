package pumpfun

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const programDataPrefix = "Program data: "

// TradeEvent is the anchor event emitted by every buy and sell.
type TradeEvent struct {
	Mint                 solana.PublicKey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 solana.PublicKey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
}

const tradeEventLen = 8 + 32 + 8 + 8 + 1 + 32 + 8 + 8 + 8

// DecodeTradeEvent parses event bytes. ok is false for other events.
func DecodeTradeEvent(data []byte) (TradeEvent, bool) {
	if len(data) < tradeEventLen || !bytes.Equal(data[:8], tradeEventDiscriminator[:]) {
		return TradeEvent{}, false
	}
	le := binary.LittleEndian
	ev := TradeEvent{
		Mint:                 solana.PublicKeyFromBytes(data[8:40]),
		SolAmount:            le.Uint64(data[40:48]),
		TokenAmount:          le.Uint64(data[48:56]),
		IsBuy:                data[56] != 0,
		User:                 solana.PublicKeyFromBytes(data[57:89]),
		Timestamp:            int64(le.Uint64(data[89:97])),
		VirtualSolReserves:   le.Uint64(data[97:105]),
		VirtualTokenReserves: le.Uint64(data[105:113]),
	}
	return ev, true
}

// TradeEvents extracts every TradeEvent from transaction logs.
func TradeEvents(logs []string) []TradeEvent {
	var events []TradeEvent
	for _, line := range logs {
		payload, found := strings.CutPrefix(line, programDataPrefix)
		if !found {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			continue
		}
		if ev, ok := DecodeTradeEvent(raw); ok {
			events = append(events, ev)
		}
	}
	return events
}

var mintPattern = regexp.MustCompile(`mint[=:]\s*([1-9A-HJ-NP-Za-km-z]{32,44})`)

// ResolveMint finds the traded mint in logs. It prefers the first TradeEvent
// and falls back to a "mint=<base58>" log line.
func ResolveMint(logs []string) (string, bool) {
	if events := TradeEvents(logs); len(events) > 0 {
		return events[0].Mint.String(), true
	}
	for _, line := range logs {
		m := mintPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(m[1]); err == nil {
			return m[1], true
		}
	}
	return "", false
}
