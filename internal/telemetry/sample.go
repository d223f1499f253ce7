package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Sample is the raw client-captured payload accompanying a submission. It is
// wholly untrusted: missing arrays behave as empty, missing scalars as zero.
type Sample struct {
	Clicks      []Click         `json:"clicks"`
	PointerPath []PointerSample `json:"mouseMoves"`
	TurnStartTs int64           `json:"sequenceStartTs"`
	Device      Device          `json:"deviceInfo"`
}

// Click is one tile press as reported by the client, including the loose
// hints used to resolve the input method.
type Click struct {
	TileIndex int     `json:"index"`
	ClientTs  int64   `json:"clientTs"`
	XPx       float64 `json:"xPx"`
	YPx       float64 `json:"yPx"`
	ClickType string  `json:"clickType,omitempty"`
	Pointer   string  `json:"pointerType,omitempty"`
	EventType string  `json:"eventType,omitempty"`
	Trusted   *bool   `json:"isTrusted,omitempty"`
}

type PointerSample struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Ts int64   `json:"ts"`
}

type Device struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
	Language  string `json:"language"`
	Screen    Extent `json:"screen"`
	Window    Extent `json:"window"`
}

type Extent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Input methods resolved at ingestion. Resolution order: an explicit
// client-supplied label wins, then the pointer-type hint, then the
// event-type hint, then an untrusted event is tagged synthetic, and anything
// left falls back to MethodUnknown.
const (
	MethodSynthetic = "synthetic"
	MethodTouch     = "touch"
	MethodUnknown   = "unknown"
)

func (c Click) InputMethod() string {
	if c.ClickType != "" {
		return c.ClickType
	}
	if c.Pointer != "" {
		return c.Pointer
	}
	if strings.Contains(c.EventType, "touch") {
		return MethodTouch
	}
	if c.Trusted != nil && !*c.Trusted {
		return MethodSynthetic
	}
	return MethodUnknown
}

// ClickedTiles returns the tile indices in click order, for prefix scoring.
func (s Sample) ClickedTiles() []int {
	tiles := make([]int, len(s.Clicks))
	for i, c := range s.Clicks {
		tiles[i] = c.TileIndex
	}
	return tiles
}

// ReactionTimes is the raw reaction series: first entry is the first click
// minus the turn start, subsequent entries are consecutive click deltas.
// Values are not clamped; the anti-cheat verifier wants them as reported.
func (s Sample) ReactionTimes() []float64 {
	if len(s.Clicks) == 0 {
		return nil
	}
	out := make([]float64, len(s.Clicks))
	for i, c := range s.Clicks {
		if i == 0 {
			base := s.TurnStartTs
			if base == 0 {
				base = c.ClientTs
			}
			out[i] = float64(c.ClientTs - base)
			continue
		}
		out[i] = float64(c.ClientTs - s.Clicks[i-1].ClientTs)
	}
	return out
}

// Fingerprint hashes an identity or descriptor irreversibly to a short hex
// tag; raw identities never reach the dataset.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// DeviceFingerprint hashes the canonical JSON form of the descriptor. An
// empty descriptor hashes to the same stable tag for every player.
func DeviceFingerprint(d Device) string {
	raw, err := json.Marshal(d)
	if err != nil {
		return MethodUnknown
	}
	return Fingerprint(string(raw))
}
