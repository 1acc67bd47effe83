// Package emailer holds the bulk providers the dispatch executor sends
// through.
package emailer

// Provider names accepted by DISPATCH_PROVIDER.
const (
	ProviderHTTP     = "http"
	ProviderSMTP     = "smtp"
	ProviderRabbitMQ = "rabbitmq"
)
