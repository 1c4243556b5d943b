package mail

import (
	"fmt"
	"net/smtp"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"

	"github.com/pkg/errors"
)

// Dispatcher は注文関連メールの送信窓口。
// 呼び出し側はfire-and-forgetで呼び、失敗はログに残すだけにする
type Dispatcher interface {
	OrderConfirmation(order model.Order, user model.User, address model.Address) error
	OrderCancelled(order model.Order, user model.User) error
}

type SMTPDispatcher struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPDispatcher(host string, port int, user, password, from string) *SMTPDispatcher {
	return &SMTPDispatcher{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", user, password, host),
		from: from,
	}
}

func (d *SMTPDispatcher) OrderConfirmation(order model.Order, user model.User, address model.Address) error {
	subject := fmt.Sprintf("Order #%d confirmed", order.ID)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nYour order #%d has been placed.\r\nTotal: %.2f\r\nPayment: %s\r\nShipping to: %s, %s, %s %s\r\n",
		user.Name, order.ID, order.TotalAmount, order.PaymentMethod,
		address.Line1, address.City, address.State, address.PostalCode,
	)
	return d.send(user.Email, subject, body)
}

func (d *SMTPDispatcher) OrderCancelled(order model.Order, user model.User) error {
	subject := fmt.Sprintf("Order #%d cancelled", order.ID)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nYour order #%d has been cancelled.\r\n",
		user.Name, order.ID,
	)
	if order.PaymentStatus == model.PaymentStatusRefundInitiated {
		body += "Your refund has been initiated and will reach you in a few business days.\r\n"
	}
	return d.send(user.Email, subject, body)
}

func (d *SMTPDispatcher) send(to, subject, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		d.from, to, subject, body,
	))
	if err := smtp.SendMail(d.addr, d.auth, d.from, []string{to}, msg); err != nil {
		return errors.Wrap(err, "send mail")
	}
	return nil
}

// SMTP未設定の環境（ローカル・テスト）では何もしない
type NopDispatcher struct{}

func (NopDispatcher) OrderConfirmation(model.Order, model.User, model.Address) error { return nil }
func (NopDispatcher) OrderCancelled(model.Order, model.User) error                   { return nil }
