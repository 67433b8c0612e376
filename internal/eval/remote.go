package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// errRemoteMiss means the remote dataset has no entry for this position.
// It is a normal outcome, distinct from transport failures.
var errRemoteMiss = errors.New("position not in remote dataset")

const defaultRemoteURL = "https://lichess.org/api/cloud-eval"

// remoteClient queries the cloud evaluation endpoint by FEN.
type remoteClient struct {
	baseURL string
	http    *http.Client
}

func newRemoteClient(baseURL string, timeout time.Duration) *remoteClient {
	if baseURL == "" {
		baseURL = defaultRemoteURL
	}
	return &remoteClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type cloudEvalResponse struct {
	PVs []struct {
		CP   *int `json:"cp"`
		Mate *int `json:"mate"`
	} `json:"pvs"`
}

// lookup fetches the score for fen. Returns errRemoteMiss when the
// service has no evaluation for the position.
func (c *remoteClient) lookup(ctx context.Context, fen string) (int, error) {
	u := fmt.Sprintf("%s?fen=%s&multiPv=1", c.baseURL, url.QueryEscape(fen))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cloud eval: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, errRemoteMiss
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cloud eval: status %d", resp.StatusCode)
	}

	var body cloudEvalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("cloud eval: decode: %w", err)
	}
	if len(body.PVs) == 0 {
		return 0, errRemoteMiss
	}

	pv := body.PVs[0]
	switch {
	case pv.Mate != nil:
		if *pv.Mate > 0 {
			return MateScore, nil
		}
		return -MateScore, nil
	case pv.CP != nil:
		return *pv.CP, nil
	default:
		return 0, errRemoteMiss
	}
}
