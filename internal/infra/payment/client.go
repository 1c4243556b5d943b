package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ゲートウェイに到達できない・拒否された
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway は決済ゲートウェイ側に注文を作る窓口。
// 返るIDがclient側の決済フローとTempOrderのキーになる
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, receipt string) (string, error)
}

type HTTPClient struct {
	baseURL    *url.URL
	keyID      string
	keySecret  string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewHTTPClient(baseURL, keyID, keySecret string, log *logrus.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse payment gateway url")
	}
	if !parsed.IsAbs() {
		return nil, errors.New("payment gateway url must be absolute")
	}
	return &HTTPClient{
		baseURL:   parsed,
		keyID:     keyID,
		keySecret: keySecret,
		log:       log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type createOrderRequest struct {
	//最小通貨単位（パイサ）
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder はゲートウェイ側に注文を作り、その注文IDを返す
func (c *HTTPClient) CreateOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL.String(), "/v1/orders")
	if err != nil {
		return "", errors.Wrap(err, "build gateway url")
	}

	//float表現の誤差で1パイサ欠けないように丸める（切り捨て禁止）
	body, err := json.Marshal(createOrderRequest{
		Amount:         int64(math.Round(amount * 100)),
		Currency:       "INR",
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal gateway order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(ErrGatewayUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("gateway order create failed")
		return "", errors.Wrapf(ErrGatewayUnavailable, "status %d", resp.StatusCode)
	}

	var data createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.Wrap(err, "decode gateway response")
	}
	if data.ID == "" {
		return "", errors.New("gateway returned empty order id")
	}
	return data.ID, nil
}
