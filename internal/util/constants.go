package util

// gin context keys
const (
	ContextCredential = "directus_credential"
	ContextBearer     = "bearer_token"
	ContextProfile    = "profile"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
)
