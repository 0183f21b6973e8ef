// services/twilio_sender.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender delivers WhatsApp messages through Twilio. One instance is
// shared by all sends; the per-call timeout lives on the underlying client
// because twilio-go has no context-aware send.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, whatsAppNumber string, timeout time.Duration) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &TwilioSender{
		client: client,
		from:   "whatsapp:" + whatsAppNumber,
	}
}

func (t *TwilioSender) Send(ctx context.Context, phone, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + phone)
	params.SetFrom(t.from)
	params.SetBody(text)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) && restErr.Status >= 400 && restErr.Status < 500 && restErr.Status != 429 {
			// Rejected request, e.g. invalid recipient. Retrying cannot help.
			return &PermanentDeliveryError{Err: err}
		}
		return err
	}

	if resp.Sid == nil {
		log.Printf("Message sent to %s, but no SID returned", phone)
	}
	return nil
}
