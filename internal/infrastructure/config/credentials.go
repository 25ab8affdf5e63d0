package config

import "strings"

// CredentialStatus describes a configured secret without revealing it
type CredentialStatus struct {
	Name      string `json:"name"`
	Present   bool   `json:"present"`
	Length    int    `json:"length"`
	MinLength int    `json:"min_length"`
	Valid     bool   `json:"valid"`
}

func credentialStatus(name, value string, minLength int) CredentialStatus {
	value = strings.TrimSpace(value)
	return CredentialStatus{
		Name:      name,
		Present:   value != "",
		Length:    len(value),
		MinLength: minLength,
		Valid:     value != "" && len(value) >= minLength,
	}
}

// Credentials reports presence and length of every upstream credential.
// Secret values never leave this function.
func (c *Config) Credentials() []CredentialStatus {
	return []CredentialStatus{
		credentialStatus("tiny.token", c.Tiny.Token, c.Tiny.MinTokenLength),
		credentialStatus("tiny.partner_id", c.Tiny.PartnerID, 1),
		credentialStatus("vnda.token", c.Vnda.Token, c.Vnda.MinTokenLength),
		credentialStatus("vnda.webhook_secret", c.Vnda.WebhookSecret, 1),
		credentialStatus("messaging.token", c.Messaging.Token, c.Messaging.MinTokenLength),
	}
}

// TokenValid reports whether the ERP token is present and long enough
func (t *TinyConfig) TokenValid() bool {
	return credentialStatus("", t.Token, t.MinTokenLength).Valid
}

// TokenValid reports whether the storefront token is present and long enough
func (v *VndaConfig) TokenValid() bool {
	return credentialStatus("", v.Token, v.MinTokenLength).Valid
}
