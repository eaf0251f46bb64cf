package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hive-corporation/nightwatch/internal/config"
)

type matrixMessage struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
}

// CitadelNotifier posts HTML-formatted messages into a Matrix room.
type CitadelNotifier struct {
	baseURL    string
	token      string
	roomID     string
	httpClient *http.Client
	txnCounter int64
}

func NewCitadelNotifier(cfg config.CitadelConfig) *CitadelNotifier {
	return &CitadelNotifier{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		token:   cfg.APIToken,
		roomID:  cfg.RoomID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		txnCounter: time.Now().UnixNano(),
	}
}

func (c *CitadelNotifier) Enabled() bool {
	return c.baseURL != "" && c.token != "" && c.roomID != ""
}

func (c *CitadelNotifier) PostHTML(ctx context.Context, app, plain, html string) error {
	payload := matrixMessage{
		MsgType: "m.text",
		Body:    plain,
	}
	if html != "" {
		payload.Format = "org.matrix.custom.html"
		payload.FormattedBody = html
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal matrix message: %w", err)
	}

	c.txnCounter++
	endpoint := fmt.Sprintf("%s/_matrix/client/r0/rooms/%s/send/m.room.message/%s?access_token=%s",
		c.baseURL,
		url.PathEscape(c.roomID),
		strconv.FormatInt(c.txnCounter, 10),
		url.QueryEscape(c.token),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create matrix request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send matrix message for %s: %w", app, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("matrix API returned status %d", resp.StatusCode)
	}
	return nil
}
