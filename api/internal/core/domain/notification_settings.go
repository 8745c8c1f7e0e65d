package domain

import (
	"time"

	"github.com/google/uuid"
)

const EntityNotificationSettings = "notification_settings"

// NotificationSettings is the tenant-scoped notification-channel configuration.
// 🛡️ SMTPPassword, TwilioAccountSID, TwilioAuthToken and FirebaseServerKey hold
// either legacy plaintext or a ciphertext envelope; nothing on the row says which.
type NotificationSettings struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	// 📧 Mail relay
	EmailEnabled  bool   `json:"email_enabled"`
	SMTPHost      string `json:"smtp_host"`
	SMTPPort      int    `json:"smtp_port"`
	SMTPUsername  string `json:"smtp_username"`
	SMTPPassword  string `json:"smtp_password"`
	SMTPFromEmail string `json:"smtp_from_email"`
	SMTPUseTLS    bool   `json:"smtp_use_tls"`

	// 📱 SMS / WhatsApp gateway
	SMSEnabled           bool   `json:"sms_enabled"`
	WhatsAppEnabled      bool   `json:"whatsapp_enabled"`
	TwilioAccountSID     string `json:"twilio_account_sid"`
	TwilioAuthToken      string `json:"twilio_auth_token"`
	TwilioWhatsAppNumber string `json:"twilio_whatsapp_number"`

	// 🔔 Push
	PushEnabled       bool   `json:"push_enabled"`
	FirebaseServerKey string `json:"firebase_server_key"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *NotificationSettings) EntityType() string  { return EntityNotificationSettings }
func (n *NotificationSettings) EntityID() uuid.UUID { return n.ID }

// NotificationSettingsSchema is the compiled accessor table for the
// notification_settings table. Attribute names are column names.
var NotificationSettingsSchema = NewSchema(
	EntityNotificationSettings,
	"notification_settings",
	func() Entity { return &NotificationSettings{} },
	UUIDField("id", func(n *NotificationSettings) *uuid.UUID { return &n.ID }).Immutable(),
	UUIDField("tenant_id", func(n *NotificationSettings) *uuid.UUID { return &n.TenantID }).Immutable(),
	BoolField("email_enabled", func(n *NotificationSettings) *bool { return &n.EmailEnabled }),
	StringField("smtp_host", func(n *NotificationSettings) *string { return &n.SMTPHost }),
	IntField("smtp_port", func(n *NotificationSettings) *int { return &n.SMTPPort }),
	StringField("smtp_username", func(n *NotificationSettings) *string { return &n.SMTPUsername }),
	StringField("smtp_password", func(n *NotificationSettings) *string { return &n.SMTPPassword }),
	StringField("smtp_from_email", func(n *NotificationSettings) *string { return &n.SMTPFromEmail }),
	BoolField("smtp_use_tls", func(n *NotificationSettings) *bool { return &n.SMTPUseTLS }),
	BoolField("sms_enabled", func(n *NotificationSettings) *bool { return &n.SMSEnabled }),
	BoolField("whatsapp_enabled", func(n *NotificationSettings) *bool { return &n.WhatsAppEnabled }),
	StringField("twilio_account_sid", func(n *NotificationSettings) *string { return &n.TwilioAccountSID }),
	StringField("twilio_auth_token", func(n *NotificationSettings) *string { return &n.TwilioAuthToken }),
	StringField("twilio_whatsapp_number", func(n *NotificationSettings) *string { return &n.TwilioWhatsAppNumber }),
	BoolField("push_enabled", func(n *NotificationSettings) *bool { return &n.PushEnabled }),
	StringField("firebase_server_key", func(n *NotificationSettings) *string { return &n.FirebaseServerKey }),
	TimeField("created_at", func(n *NotificationSettings) *time.Time { return &n.CreatedAt }).Immutable(),
	TimeField("updated_at", func(n *NotificationSettings) *time.Time { return &n.UpdatedAt }).Immutable(),
)
