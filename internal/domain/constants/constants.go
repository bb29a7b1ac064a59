// Package constants holds values shared across layers.
package constants

// Environments
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Pub/Sub providers
const (
	PubSubProviderRabbit = "rabbit"
	PubSubProviderMem    = "mem"
	PubSubProviderGoogle = "google"
	PubSubProviderLocal  = "local"
)

// TokenTypeBearer is the type tag carried by every issued token.
const TokenTypeBearer = "bearer"
