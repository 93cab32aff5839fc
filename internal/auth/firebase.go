package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/shinyyama/rental-backend/internal/model"
)

// FirebaseVerifier checks Firebase ID tokens. The role comes from the
// "role" custom claim and defaults to tenant.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Principal{UserID: tok.UID, Role: roleClaim(tok.Claims)}, nil
}

func roleClaim(claims map[string]interface{}) model.Role {
	if s, ok := claims["role"].(string); ok && model.Role(s).Valid() {
		return model.Role(s)
	}
	return model.RoleTenant
}
