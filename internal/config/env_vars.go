package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "FOLDER"
	issuerEnvVar = "AUTH_ISSUER"
	clientIDVar  = "AUTH_CLIENT_ID"
	tokenURLVar  = "AUTH_TOKEN_URL"
	usernameVar  = "AUTH_USER"
	passwordVar  = "AUTH_PASS"
	storeVar     = "AUTH_STORE"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetIssuer() string
	GetClientID() string
	GetTokenURL() string
	GetUsername() string
	GetPassword() string
	GetStoreBackend() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Client")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetIssuer returns the OIDC issuer used for endpoint discovery.
func (EnvVars) GetIssuer() string {
	return GetEnv(issuerEnvVar, "http://localhost:8080")
}

func (EnvVars) GetClientID() string {
	return GetEnv(clientIDVar, "go-auth-client")
}

// GetTokenURL returns an explicit token endpoint; empty means discover it
// from the issuer.
func (EnvVars) GetTokenURL() string {
	return GetEnv(tokenURLVar, "")
}

func (EnvVars) GetUsername() string {
	return GetEnv(usernameVar, "")
}

func (EnvVars) GetPassword() string {
	return GetEnv(passwordVar, "")
}

// GetStoreBackend selects the credential store implementation, "file" or
// "bolt".
func (EnvVars) GetStoreBackend() string {
	return GetEnv(storeVar, "file")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
