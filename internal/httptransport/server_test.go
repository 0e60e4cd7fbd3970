package httptransport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beatparser "github.com/jota2rz/beat-parser"
	"github.com/jota2rz/beat-parser/internal/config"
)

func newTestParser(t *testing.T) *beatparser.Parser {
	t.Helper()
	p, err := beatparser.NewParser(config.Default())
	require.NoError(t, err)
	t.Cleanup(p.Cleanup)
	return p
}

func clickTrack(bpm, durationSec float64, sr int) []float64 {
	n := int(durationSec * float64(sr))
	out := make([]float64, n)
	period := int(float64(sr) * 60 / bpm)
	for i := 0; i < n; i += period {
		out[i] = 1.0
	}
	return out
}

func TestParseThenEventsDeliversResult(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestParser(t)).Handler())
	defer srv.Close()

	body, _ := json.Marshal(parseRequest{
		Samples:    clickTrack(120, 5, 44100),
		SourceRate: 44100,
		Channels:   1,
	})
	resp, err := http.Post(srv.URL+"/parse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted parseAccepted
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(t, accepted.ID)

	events, err := http.Get(srv.URL + "/events/" + accepted.ID)
	require.NoError(t, err)
	defer events.Body.Close()
	require.Equal(t, http.StatusOK, events.StatusCode)

	sawResult := false
	scanner := bufio.NewScanner(events.Body)
	deadline := time.Now().Add(10 * time.Second)
	for scanner.Scan() && time.Now().Before(deadline) {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: result") {
			sawResult = true
			break
		}
	}
	assert.True(t, sawResult)
}

func TestParseRejectsEmptySamples(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestParser(t)).Handler())
	defer srv.Close()

	body, _ := json.Marshal(parseRequest{SourceRate: 44100, Channels: 1})
	resp, err := http.Post(srv.URL+"/parse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsUnknownJobNotFound(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestParser(t)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelUnknownJobIsNoop(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestParser(t)).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/cancel/does-not-exist", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCancelAllAbortsInFlightJob(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestParser(t)).Handler())
	defer srv.Close()

	body, _ := json.Marshal(parseRequest{
		Samples:    clickTrack(120, 60, 44100),
		SourceRate: 44100,
		Channels:   1,
	})
	resp, err := http.Post(srv.URL+"/parse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted parseAccepted
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))

	events, err := http.Get(srv.URL + "/events/" + accepted.ID)
	require.NoError(t, err)
	defer events.Body.Close()

	cancelResp, err := http.Post(srv.URL+"/cancel/all", "application/json", nil)
	require.NoError(t, err)
	defer cancelResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, cancelResp.StatusCode)

	sawError := false
	scanner := bufio.NewScanner(events.Body)
	deadline := time.Now().Add(10 * time.Second)
	for scanner.Scan() && time.Now().Before(deadline) {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: error") {
			sawError = true
			break
		}
	}
	assert.True(t, sawError)
}
