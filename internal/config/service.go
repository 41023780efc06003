package config

import "time"

type ServiceConfig struct {
	Name        string       `yaml:"name"`
	Environment string       `yaml:"environment"`
	Version     string       `yaml:"version"`
	ClientURL   string       `yaml:"client_url"`
	Stripe      StripeConfig `yaml:"stripe"`
	PayPal      PayPalConfig `yaml:"paypal"`
	Notify      NotifyConfig `yaml:"notify"`

	// SweepInterval is how often timed-out event correlations are swept
	// into operator alerts
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type PayPalConfig struct {
	BaseURL       string `yaml:"base_url"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	WebhookID     string `yaml:"webhook_id"`
	ReturnURL     string `yaml:"return_url"`
	CancelURL     string `yaml:"cancel_url"`
}

type NotifyConfig struct {
	// WebhookURL receives fire-and-forget purchase and dispute
	// notifications. Empty disables delivery.
	WebhookURL string `yaml:"webhook_url"`
	AlertURL   string `yaml:"alert_url"`
}
