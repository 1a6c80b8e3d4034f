package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/raterudder/azzurro/pkg/common"
	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/types"
)

// DefaultEndpoint is the third-party API of the ZCS Azzurro portal.
const DefaultEndpoint = "https://third.zcsazzurroportal.com:19003"

// the portal sits behind a proxy that answers with HTML error pages
const (
	proxyErrorMarker       = "502 Proxy Error"
	serviceUnavailableMark = "503 Service Unavailable"
)

const (
	historicWindow         = 8 * time.Hour
	historicRequiredValues = "ts,currentDC,voltageDC,powerDC,temperature,energyGeneratingTotal,energyGenerating,powerGenerating"
	requestTimeFormat      = "2006-01-02T15:04:05Z"
)

// ZCS implements Portal for the ZCS Azzurro cloud portal. One instance serves
// every device of an account since credentials are shared.
type ZCS struct {
	client          *http.Client
	endpoint        string
	clientCode      string
	authKey         string
	includeHistoric bool
	now             func() time.Time
}

// NewZCS returns a ZCS portal client for the given account credentials. An
// empty endpoint uses DefaultEndpoint.
func NewZCS(endpoint, clientCode, authKey string, timeout time.Duration) *ZCS {
	z := newZCS(clientCode, authKey, timeout)
	if endpoint != "" {
		z.endpoint = endpoint
	}
	return z
}

func newZCS(clientCode, authKey string, timeout time.Duration) *ZCS {
	return &ZCS{
		client:          common.HTTPClient(timeout),
		endpoint:        DefaultEndpoint,
		clientCode:      clientCode,
		authKey:         authKey,
		includeHistoric: true,
		now:             time.Now,
	}
}

// Validate checks that the account credentials are set.
func (z *ZCS) Validate() error {
	if z.clientCode == "" {
		return errors.New("missing client code")
	}
	if z.authKey == "" {
		return errors.New("missing auth key")
	}
	if z.endpoint == "" {
		return errors.New("missing endpoint")
	}
	return nil
}

type commandParams struct {
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
	ThingKey       string `json:"thingKey"`
	RequiredValues string `json:"requiredValues"`
}

type command struct {
	Command string        `json:"command"`
	Params  commandParams `json:"params"`
}

type fetchRequest struct {
	RealtimeData command  `json:"realtimeData"`
	HistoricData *command `json:"historicData,omitempty"`
}

func (z *ZCS) newFetchRequest(thingKey string, now time.Time) fetchRequest {
	fr := fetchRequest{
		RealtimeData: command{
			Command: "realtimeData",
			Params: commandParams{
				ThingKey:       thingKey,
				RequiredValues: "*",
			},
		},
	}
	if z.includeHistoric {
		now = now.UTC()
		fr.HistoricData = &command{
			Command: "historicData",
			Params: commandParams{
				Start:          now.Add(-historicWindow).Format(requestTimeFormat),
				End:            now.Format(requestTimeFormat),
				ThingKey:       thingKey,
				RequiredValues: historicRequiredValues,
			},
		}
	}
	return fr
}

func (z *ZCS) newPostJSONRequest(ctx context.Context, data interface{}) (*http.Request, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", z.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client", z.clientCode)
	req.Header.Set("Authorization", z.authKey)
	return req, nil
}

// Fetch requests real-time data, and historic data for the last hours when
// enabled, for thingKey.
func (z *ZCS) Fetch(ctx context.Context, thingKey string) types.RemoteResult {
	fr := z.newFetchRequest(thingKey, z.now())
	if fr.HistoricData != nil {
		log.Ctx(ctx).DebugContext(
			ctx,
			"requesting real-time and historic data",
			slog.String("start", fr.HistoricData.Params.Start),
			slog.String("end", fr.HistoricData.Params.End),
		)
	} else {
		log.Ctx(ctx).DebugContext(ctx, "requesting real-time data")
	}

	req, err := z.newPostJSONRequest(ctx, fr)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build portal request", slog.Any("error", err))
		return types.Failed(types.StatusTransportError, 0, err)
	}
	return z.doRequest(req)
}

func (z *ZCS) doRequest(req *http.Request) types.RemoteResult {
	ctx := req.Context()

	resp, err := z.client.Do(req)
	if err != nil {
		return transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(ctx, err)
	}
	text := string(body)

	if strings.Contains(text, proxyErrorMarker) {
		log.Ctx(ctx).WarnContext(ctx, "portal is unavailable", slog.String("reason", proxyErrorMarker))
		return types.Failed(types.StatusServerError, http.StatusBadGateway, errors.New(proxyErrorMarker))
	}
	if strings.Contains(text, serviceUnavailableMark) {
		log.Ctx(ctx).WarnContext(ctx, "portal is unavailable", slog.String("reason", serviceUnavailableMark))
		return types.Failed(types.StatusServerError, http.StatusServiceUnavailable, errors.New(serviceUnavailableMark))
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		log.Ctx(ctx).ErrorContext(ctx, "portal rejected request", slog.Int("status", resp.StatusCode), slog.String("body", text))
		return types.Failed(types.StatusClientError, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		log.Ctx(ctx).WarnContext(ctx, "portal server error", slog.Int("status", resp.StatusCode))
		return types.Failed(types.StatusServerError, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	payload, err := decodePayload(body)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "unable to parse portal response", slog.Any("error", err), slog.String("body", text))
		return types.Failed(types.StatusParseError, resp.StatusCode, err)
	}

	return types.RemoteResult{
		Class:   types.StatusSuccess,
		Code:    resp.StatusCode,
		Payload: payload,
	}
}

// decodePayload keeps numbers as json.Number so values are passed through
// without float rounding.
func decodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("empty json document")
	}
	return payload, nil
}

func transportFailure(ctx context.Context, err error) types.RemoteResult {
	if isTimeout(err) {
		log.Ctx(ctx).WarnContext(ctx, "timeout fetching data from portal", slog.Any("error", err))
		return types.Failed(types.StatusTimeout, 0, err)
	}
	log.Ctx(ctx).ErrorContext(ctx, "error fetching data from portal", slog.Any("error", err))
	return types.Failed(types.StatusTransportError, 0, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
