package email

import (
	"bytes"
	"html/template"

	"github.com/rookgm/storefront/internal/models"
)

const brand = "SaveExtraPad"

var (
	reminderTmpl = template.Must(template.New("reminder").Parse(
		`<p>Hi {{.Name}},</p><p>This is a reminder for your upcoming cycle starting on {{.CycleStart.Format "2006-01-02"}}.</p>`))

	subscriptionTmpl = template.Must(template.New("subscription").Parse(
		`<p>Hi there,</p><p>Thanks for subscribing to ` + brand + `!</p>`))

	contactTmpl = template.Must(template.New("contact").Parse(
		`<p><strong>Name:</strong> {{.Name}}</p><p><strong>Email:</strong> {{.Email}}</p><p><strong>Message:</strong><br/>{{.Message}}</p>`))

	orderTmpl = template.Must(template.New("order").Parse(
		`<p>Hi {{.Name}},</p><p>Your order <strong>{{.OrderID}}</strong> has been paid: {{.Total.StringFixed 2}} {{.Currency}}.</p><p>Thank you for shopping with ` + brand + `.</p>`))
)

// ReminderMessage returns cycle reminder email
func ReminderMessage(r models.Reminder) (Message, error) {
	html, err := render(reminderTmpl, r)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{r.Email}, Subject: "Your Cycle Reminder", HTML: html}, nil
}

// SubscriptionMessage returns newsletter confirmation email
func SubscriptionMessage(email string) (Message, error) {
	html, err := render(subscriptionTmpl, nil)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{email}, Subject: "Thanks for Subscribing!", HTML: html}, nil
}

// ContactMessage returns contact form email addressed to store inbox
func ContactMessage(inbox string, msg models.ContactMessage) (Message, error) {
	html, err := render(contactTmpl, msg)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{inbox}, Subject: "Contact Message from " + msg.Name, HTML: html}, nil
}

// OrderConfirmationMessage returns payment confirmation email
func OrderConfirmationMessage(event models.OrderCompletedEvent) (Message, error) {
	html, err := render(orderTmpl, event)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{event.Email}, Subject: "Order Confirmation: " + event.OrderID, HTML: html}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
