package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"memorix/internal/config"
	"memorix/internal/dataset"
	"memorix/internal/rounds"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	cfg.Dataset.Dir = t.TempDir()

	store, err := dataset.Open(cfg.Dataset)
	if err != nil {
		t.Fatalf("dataset.Open() error: %v", err)
	}

	srv := New(cfg, store, nil, time.Now)
	srv.Rounds = rounds.NewRegistry(time.Now,
		time.Duration(cfg.RoundGraceMs)*time.Millisecond, srv.abandonRound)
	t.Cleanup(srv.Rounds.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode, out
}

// startRound starts a round and returns its ID and sequence.
func startRound(t *testing.T, baseURL, mode, playerID string) (string, []int) {
	t.Helper()
	status, out := postJSON(t, baseURL+"/api/round/start/"+mode, map[string]any{
		"playerId": playerID,
	})
	if status != http.StatusOK {
		t.Fatalf("start %s status = %d: %v", mode, status, out)
	}
	roundID := out["roundId"].(string)
	var sequence []int
	for _, v := range out["sequence"].([]any) {
		sequence = append(sequence, int(v.(float64)))
	}
	return roundID, sequence
}

// clicksFor builds a plausibly-human click list for the given tiles: one
// click every 400ms starting 400ms after the reveal.
func clicksFor(tiles []int, startTs int64) []map[string]any {
	clicks := make([]map[string]any, len(tiles))
	for i, tile := range tiles {
		clicks[i] = map[string]any{
			"index":    tile,
			"clientTs": startTs + int64(i+1)*400,
		}
	}
	return clicks
}

func submitBody(roundID, playerID string, clicks []map[string]any, startTs int64) map[string]any {
	return map[string]any{
		"roundId":  roundID,
		"playerId": playerID,
		"clicks":   clicks,
		"telemetry": map[string]any{
			"clicks":          clicks,
			"mouseMoves":      []any{},
			"sequenceStartTs": startTs,
			"deviceInfo":      map[string]any{},
		},
	}
}

func TestStartInfinite(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := postJSON(t, ts.URL+"/api/round/start/infinite", map[string]any{
		"playerId": "alice",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if out["roundId"] == "" {
		t.Error("roundId missing")
	}
	if lvl := out["level"].(float64); lvl != 1 {
		t.Errorf("level = %v, want 1 for a fresh player", lvl)
	}
	if gs := out["gridSize"].(float64); gs != 3 {
		t.Errorf("gridSize = %v, want 3 at level 1", gs)
	}
	if n := len(out["sequence"].([]any)); n != 3 {
		t.Errorf("sequence length = %d, want 3 at level 1", n)
	}
	if tl := out["timeLimitMs"].(float64); tl != 10000 {
		t.Errorf("timeLimitMs = %v, want 10000 at level 1", tl)
	}
}

func TestStartInfinite_MissingPlayer(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := postJSON(t, ts.URL+"/api/round/start/infinite", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if out["error"] != "BAD_REQUEST" {
		t.Errorf("error = %v, want BAD_REQUEST", out["error"])
	}
}

func TestSubmitInfinite_Perfect(t *testing.T) {
	srv, ts := newTestServer(t)

	roundID, sequence := startRound(t, ts.URL, "infinite", "alice")

	startTs := time.Now().UnixMilli()
	status, out := postJSON(t, ts.URL+"/api/round/submit/infinite",
		submitBody(roundID, "alice", clicksFor(sequence, startTs), startTs))
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, out)
	}

	if got := out["correctSteps"].(float64); int(got) != len(sequence) {
		t.Errorf("correctSteps = %v, want %d", got, len(sequence))
	}
	if out["isPerfect"] != true {
		t.Error("isPerfect should be true")
	}
	if out["verified"] != true {
		t.Error("verified should be true for 400ms reactions")
	}
	if out["canContinue"] != true {
		t.Error("canContinue should be true for a verified perfect round")
	}
	if nl := out["nextLevel"].(float64); nl != 2 {
		t.Errorf("nextLevel = %v, want 2", nl)
	}
	if score := out["score"].(float64); score <= 0 {
		t.Errorf("score = %v, want > 0", score)
	}

	// The level cache should now hand out level 2 rounds.
	if lvl := srv.playerLevel("alice"); lvl != 2 {
		t.Errorf("cached level = %d, want 2 after level-up", lvl)
	}
}

func TestSubmitInfinite_Twice(t *testing.T) {
	_, ts := newTestServer(t)

	roundID, sequence := startRound(t, ts.URL, "infinite", "alice")
	startTs := time.Now().UnixMilli()
	body := submitBody(roundID, "alice", clicksFor(sequence, startTs), startTs)

	if status, _ := postJSON(t, ts.URL+"/api/round/submit/infinite", body); status != http.StatusOK {
		t.Fatalf("first submit status = %d, want 200", status)
	}
	status, out := postJSON(t, ts.URL+"/api/round/submit/infinite", body)
	if status != http.StatusNotFound {
		t.Errorf("second submit status = %d, want 404", status)
	}
	if out["error"] != "NOT_FOUND" {
		t.Errorf("error = %v, want NOT_FOUND", out["error"])
	}
}

func TestSubmitInfinite_WrongPlayer(t *testing.T) {
	_, ts := newTestServer(t)

	roundID, sequence := startRound(t, ts.URL, "infinite", "alice")
	startTs := time.Now().UnixMilli()
	clicks := clicksFor(sequence, startTs)

	status, out := postJSON(t, ts.URL+"/api/round/submit/infinite",
		submitBody(roundID, "mallory", clicks, startTs))
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if out["error"] != "UNAUTHORIZED" {
		t.Errorf("error = %v, want UNAUTHORIZED", out["error"])
	}

	// The round stays registered for its owner.
	status, _ = postJSON(t, ts.URL+"/api/round/submit/infinite",
		submitBody(roundID, "alice", clicks, startTs))
	if status != http.StatusOK {
		t.Errorf("owner submit after unauthorized attempt = %d, want 200", status)
	}
}

func TestSubmitInfinite_TooFastFailsVerification(t *testing.T) {
	_, ts := newTestServer(t)

	roundID, sequence := startRound(t, ts.URL, "infinite", "alice")

	// 10ms reactions: perfect recall, inhuman speed.
	startTs := time.Now().UnixMilli()
	clicks := make([]map[string]any, len(sequence))
	for i, tile := range sequence {
		clicks[i] = map[string]any{"index": tile, "clientTs": startTs + int64(i+1)*10}
	}

	status, out := postJSON(t, ts.URL+"/api/round/submit/infinite",
		submitBody(roundID, "alice", clicks, startTs))
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, out)
	}
	if out["isPerfect"] != true {
		t.Error("isPerfect should still be true")
	}
	if out["verified"] != false {
		t.Error("verified should be false for 10ms reactions")
	}
	if out["canContinue"] != false {
		t.Error("an unverified round must not advance the level")
	}
	if nl := out["nextLevel"].(float64); nl != 1 {
		t.Errorf("nextLevel = %v, want 1", nl)
	}
}

func TestSubmitInfinite_EmptySubmission(t *testing.T) {
	_, ts := newTestServer(t)

	roundID, _ := startRound(t, ts.URL, "infinite", "alice")

	status, out := postJSON(t, ts.URL+"/api/round/submit/infinite", map[string]any{
		"roundId":  roundID,
		"playerId": "alice",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, out)
	}
	if got := out["correctSteps"].(float64); got != 0 {
		t.Errorf("correctSteps = %v, want 0", got)
	}
	if out["isPerfect"] != false {
		t.Error("isPerfect should be false")
	}
	if out["verified"] != true {
		t.Error("a clickless round has nothing to fail verification on")
	}
}

func TestSubmitDaily_Partial(t *testing.T) {
	_, ts := newTestServer(t)

	roundID, sequence := startRound(t, ts.URL, "daily", "alice")

	// First tile right, second wrong, rest skipped.
	startTs := time.Now().UnixMilli()
	clicks := clicksFor([]int{sequence[0], (sequence[1] + 1) % 16}, startTs)

	status, out := postJSON(t, ts.URL+"/api/round/submit/daily",
		submitBody(roundID, "alice", clicks, startTs))
	if status != http.StatusOK {
		t.Fatalf("status = %d: %v", status, out)
	}
	if got := out["correctSteps"].(float64); got != 1 {
		t.Errorf("correctSteps = %v, want 1", got)
	}
	if ttl := out["totalSteps"].(float64); ttl != 6 {
		t.Errorf("totalSteps = %v, want 6", ttl)
	}
	if out["passed"] != false {
		t.Error("passed should be false")
	}
	if out["rewardEarned"] != false {
		t.Error("rewardEarned should be false for a miss")
	}
}

func TestDailyStatus_NoLedger(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := getJSON(t, ts.URL+"/api/daily/status/alice")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if out["triesUsed"].(float64) != 0 {
		t.Errorf("triesUsed = %v, want 0", out["triesUsed"])
	}
	if out["maxTries"].(float64) != 3 {
		t.Errorf("maxTries = %v, want 3", out["maxTries"])
	}
	if out["canPlay"] != true {
		t.Error("canPlay should be true with no attempts")
	}
}

func TestPlayerStats_NoLedger(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := getJSON(t, ts.URL+"/api/player/alice/stats")
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
	if out["error"] != "LEDGER_UNAVAILABLE" {
		t.Errorf("error = %v, want LEDGER_UNAVAILABLE", out["error"])
	}
}

func TestLeaderboard_NoLedger(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := getJSON(t, ts.URL+"/api/leaderboard")
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := getJSON(t, ts.URL+"/api/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if out["status"] != "ok" {
		t.Errorf("status field = %v, want ok", out["status"])
	}
}

func TestConfigEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	status, out := getJSON(t, ts.URL+"/api/config")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if _, ok := out["progression"]; !ok {
		t.Error("progression config missing")
	}
	if _, ok := out["daily"]; !ok {
		t.Error("daily config missing")
	}
}

func TestDateKeyUTC(t *testing.T) {
	at := time.Date(2026, time.August, 29, 23, 59, 0, 0, time.UTC)
	if got := dateKeyUTC(at); got != 20260829 {
		t.Errorf("dateKeyUTC = %d, want 20260829", got)
	}
	// A moment later in UTC is the next key regardless of local zone.
	if got := dateKeyUTC(at.Add(2 * time.Minute)); got != 20260830 {
		t.Errorf("dateKeyUTC = %d, want 20260830", got)
	}
}
