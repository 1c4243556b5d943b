package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// プロバイダに到達できない・拒否された
var ErrProviderUnavailable = errors.New("shipping provider unavailable")

// 割り当てられた配送業者の追跡情報
type Courier struct {
	TrackingID  string
	TrackingURL string
}

// 配送リクエストに載せる宛先スナップショット
type Destination struct {
	Name       string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
}

type LineItem struct {
	Name  string
	SKU   string
	Units int64
	Price float64
}

type ShipmentRequest struct {
	//内部注文IDをプロバイダ側の参照にする（同じ参照なら二重作成されない）
	OrderRef       string
	PickupLocation string
	Destination    Destination
	Items          []LineItem
	SubTotal       float64
	//"Prepaid" か "COD"
	PaymentMode string
}

// Client は配送プロバイダの窓口。全操作ともbest-effortで呼ばれる
type Client interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (string, error)
	AssignCourier(ctx context.Context, shipmentID string) (Courier, error)
	CancelShipment(ctx context.Context, shipmentID string) error
}

type HTTPClient struct {
	baseURL    *url.URL
	email      string
	password   string
	httpClient *http.Client
	log        *logrus.Logger

	//認証トークンはキャッシュして使い回す
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewHTTPClient(baseURL, email, password string, log *logrus.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse shipping provider url")
	}
	if !parsed.IsAbs() {
		return nil, errors.New("shipping provider url must be absolute")
	}
	return &HTTPClient{
		baseURL:  parsed,
		email:    email,
		password: password,
		log:      log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	resp, err := c.post(ctx, "/v1/external/auth/login", "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrProviderUnavailable, "login status %d", resp.StatusCode)
	}

	var data loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.Wrap(err, "decode login response")
	}
	if data.Token == "" {
		return "", errors.New("shipping provider returned empty token")
	}

	//プロバイダのトークン有効期限より手前で更新する
	c.token = data.Token
	c.tokenExpiry = time.Now().Add(9 * 24 * time.Hour)
	return c.token, nil
}

type createShipmentResponse struct {
	OrderID    int64 `json:"order_id"`
	ShipmentID int64 `json:"shipment_id"`
}

func (c *HTTPClient) CreateShipment(ctx context.Context, req ShipmentRequest) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	items := make([]map[string]interface{}, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, map[string]interface{}{
			"name":          it.Name,
			"sku":           it.SKU,
			"units":         it.Units,
			"selling_price": it.Price,
		})
	}

	payload := map[string]interface{}{
		"order_id":              req.OrderRef,
		"order_date":            time.Now().Format("2006-01-02 15:04"),
		"pickup_location":       req.PickupLocation,
		"billing_customer_name": req.Destination.Name,
		"billing_phone":         req.Destination.Phone,
		"billing_address":       req.Destination.Line1,
		"billing_address_2":     req.Destination.Line2,
		"billing_city":          req.Destination.City,
		"billing_state":         req.Destination.State,
		"billing_pincode":       req.Destination.PostalCode,
		"shipping_is_billing":   true,
		"order_items":           items,
		"payment_method":        req.PaymentMode,
		"sub_total":             req.SubTotal,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal shipment")
	}

	resp, err := c.post(ctx, "/v1/external/orders/create/adhoc", token, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Warn("shipment create rejected")
		return "", errors.Wrapf(ErrProviderUnavailable, "create shipment status %d", resp.StatusCode)
	}

	var data createShipmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.Wrap(err, "decode shipment response")
	}
	if data.ShipmentID == 0 {
		return "", errors.New("shipping provider returned empty shipment id")
	}
	return strconv.FormatInt(data.ShipmentID, 10), nil
}

type assignCourierResponse struct {
	Response struct {
		Data struct {
			AWBCode string `json:"awb_code"`
		} `json:"data"`
	} `json:"response"`
}

func (c *HTTPClient) AssignCourier(ctx context.Context, shipmentID string) (Courier, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return Courier{}, err
	}

	body, _ := json.Marshal(map[string]string{"shipment_id": shipmentID})
	resp, err := c.post(ctx, "/v1/external/courier/assign/awb", token, body)
	if err != nil {
		return Courier{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Courier{}, errors.Wrapf(ErrProviderUnavailable, "assign courier status %d", resp.StatusCode)
	}

	var data assignCourierResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Courier{}, errors.Wrap(err, "decode courier response")
	}
	awb := data.Response.Data.AWBCode
	if awb == "" {
		return Courier{}, errors.New("shipping provider returned empty awb")
	}

	return Courier{
		TrackingID:  awb,
		TrackingURL: fmt.Sprintf("%s://%s/tracking/%s", c.baseURL.Scheme, c.baseURL.Host, awb),
	}, nil
}

func (c *HTTPClient) CancelShipment(ctx context.Context, shipmentID string) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]string{"shipment_id": shipmentID})
	resp, err := c.post(ctx, "/v1/external/orders/cancel", token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrProviderUnavailable, "cancel shipment status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, token string, body []byte) (*http.Response, error) {
	//base URL側のパスプレフィックスを保つ
	endpoint, err := url.JoinPath(c.baseURL.String(), path)
	if err != nil {
		return nil, errors.Wrap(err, "build provider url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	return resp, nil
}
