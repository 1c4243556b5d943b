package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentVerifier はゲートウェイからの決済callbackの真正性を検証する。
// 副作用なし。
type PaymentVerifier struct {
	secret []byte
}

func NewPaymentVerifier(secret string) *PaymentVerifier {
	return &PaymentVerifier{secret: []byte(secret)}
}

// Verify は HMAC-SHA256(secret, gatewayOrderID|paymentID) を再計算して
// signatureと比較する。比較はタイミング攻撃に耐える定数時間比較
func (v *PaymentVerifier) Verify(gatewayOrderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
