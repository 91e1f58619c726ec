package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

var ErrFirebaseConfigIncomplete = errors.New("missing required Firebase config environment variables")

type ServiceAccountCredentials struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain"`
}

type FirebaseConfig struct {
	ProjectID   string
	DatabaseURL string
	Credentials ServiceAccountCredentials
}

type FirebaseClient struct {
	App       *firebase.App
	Firestore *firestore.Client
}

func NewFirebaseClient(ctx context.Context, cfg *FirebaseConfig) (*FirebaseClient, error) {
	credentialsJSON, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	slog.Info("Firebase connection initialized successfully", "project_id", cfg.ProjectID)
	return &FirebaseClient{
		App:       app,
		Firestore: firestoreClient,
	}, nil
}

func (c *FirebaseClient) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	if err := c.Firestore.Close(); err != nil {
		return fmt.Errorf("failed to close Firebase connection: %w", err)
	}
	return nil
}

func validateEnvVariables(envVariables []string) error {
	if slices.Contains(envVariables, "") {
		return ErrFirebaseConfigIncomplete
	}
	return nil
}

// LoadFirebaseConfig reads the service account from FIREBASE_* variables.
// Private keys pasted into .env files usually carry literal "\n" sequences.
func LoadFirebaseConfig() (*FirebaseConfig, error) {
	credentials := ServiceAccountCredentials{
		Type:                    os.Getenv("FIREBASE_TYPE"),
		ProjectID:               os.Getenv("FIREBASE_PROJECT_ID"),
		PrivateKeyID:            os.Getenv("FIREBASE_PRIVATE_KEY_ID"),
		PrivateKey:              strings.ReplaceAll(os.Getenv("FIREBASE_PRIVATE_KEY"), `\n`, "\n"),
		ClientEmail:             os.Getenv("FIREBASE_CLIENT_EMAIL"),
		ClientID:                os.Getenv("FIREBASE_CLIENT_ID"),
		AuthURI:                 os.Getenv("FIREBASE_AUTH_URI"),
		TokenURI:                os.Getenv("FIREBASE_TOKEN_URI"),
		AuthProviderX509CertURL: os.Getenv("FIREBASE_AUTH_PROVIDER_X509_CERT_URL"),
		ClientX509CertURL:       os.Getenv("FIREBASE_CLIENT_X509_CERT_URL"),
		UniverseDomain:          os.Getenv("FIREBASE_UNIVERSE_DOMAIN"),
	}
	databaseURL := os.Getenv("FIREBASE_DATABASE_URL")

	requiredVars := []string{
		credentials.ProjectID,
		databaseURL,
		credentials.Type,
		credentials.PrivateKeyID,
		credentials.PrivateKey,
		credentials.ClientEmail,
		credentials.ClientID,
		credentials.AuthURI,
		credentials.TokenURI,
		credentials.AuthProviderX509CertURL,
		credentials.ClientX509CertURL,
		credentials.UniverseDomain,
	}
	if err := validateEnvVariables(requiredVars); err != nil {
		return nil, err
	}

	return &FirebaseConfig{
		ProjectID:   credentials.ProjectID,
		DatabaseURL: databaseURL,
		Credentials: credentials,
	}, nil
}
