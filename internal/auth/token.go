// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/juju/storefront/core/user"
)

const (
	// ErrTokenNotValid is returned when a token cannot be parsed, has
	// expired, or was issued for a different purpose.
	ErrTokenNotValid = errors.ConstError("token not valid")

	tokenIssuer = "storefront"

	purposeClaimKey = "purpose"
	emailClaimKey   = "email"
	roleClaimKey    = "role"
	codeClaimKey    = "code"
	stampClaimKey   = "stamp"

	// MinSecretLength is the shortest signing secret accepted.
	MinSecretLength = 16
)

var jwtAlg = jwa.HS512

// Purpose restricts what a token may be used for.
type Purpose string

const (
	// PurposeAccess tokens authenticate API requests.
	PurposeAccess Purpose = "access"
	// PurposeVerify tokens carry an email verification code.
	PurposeVerify Purpose = "verify"
	// PurposeReset tokens allow a password to be reset.
	PurposeReset Purpose = "reset"
)

// Claims are the contents of a parsed token.
type Claims struct {
	Purpose Purpose
	// Subject is the user uuid for access tokens and the email address for
	// every other purpose.
	Subject   string
	Email     string
	Role      user.Role
	Code      string
	// Stamp is the password stamp a reset token was issued against.
	Stamp     string
	ExpiresAt time.Time
}

// TokenIssuer signs and parses HMAC signed JWTs.
type TokenIssuer struct {
	secret []byte
	clock  clock.Clock
}

// NewTokenIssuer returns a TokenIssuer signing with the given secret.
func NewTokenIssuer(secret []byte, clock clock.Clock) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.NotValidf("jwt secret shorter than %d bytes", MinSecretLength)
	}
	if clock == nil {
		return nil, errors.NotValidf("nil clock")
	}
	return &TokenIssuer{
		secret: secret,
		clock:  clock,
	}, nil
}

// IssueAccess returns an access token for the user.
func (t *TokenIssuer) IssueAccess(uuid user.UUID, email string, role user.Role, ttl time.Duration) (string, error) {
	return t.issue(uuid.String(), PurposeAccess, ttl, map[string]string{
		emailClaimKey: email,
		roleClaimKey:  role.String(),
	})
}

// IssueVerification returns a token carrying the verification code for the
// email address.
func (t *TokenIssuer) IssueVerification(email, code string, ttl time.Duration) (string, error) {
	return t.issue(email, PurposeVerify, ttl, map[string]string{
		emailClaimKey: email,
		codeClaimKey:  code,
	})
}

// IssueReset returns a token allowing the password of the email address to
// be reset. The stamp of the current password is carried so the token stops
// working once the password changes.
func (t *TokenIssuer) IssueReset(email, stamp string, ttl time.Duration) (string, error) {
	return t.issue(email, PurposeReset, ttl, map[string]string{
		emailClaimKey: email,
		stampClaimKey: stamp,
	})
}

func (t *TokenIssuer) issue(subject string, purpose Purpose, ttl time.Duration, claims map[string]string) (string, error) {
	now := t.clock.Now()
	builder := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(purposeClaimKey, string(purpose))
	for k, v := range claims {
		builder = builder.Claim(k, v)
	}

	token, err := builder.Build()
	if err != nil {
		return "", errors.Annotate(err, "building token")
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwtAlg, t.secret))
	if err != nil {
		return "", errors.Annotate(err, "signing token")
	}
	return string(signed), nil
}

// Parse verifies the token and returns its claims. If the token is not
// valid, has expired, or was not issued for purpose, an error satisfying
// ErrTokenNotValid is returned.
func (t *TokenIssuer) Parse(raw string, purpose Purpose) (Claims, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwtAlg, t.secret),
		jwt.WithClock(t.clock),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return Claims{}, errors.Annotate(ErrTokenNotValid, err.Error())
	}

	private := token.PrivateClaims()
	claims := Claims{
		Purpose:   Purpose(stringClaim(private, purposeClaimKey)),
		Subject:   token.Subject(),
		Email:     stringClaim(private, emailClaimKey),
		Role:      user.Role(stringClaim(private, roleClaimKey)),
		Code:      stringClaim(private, codeClaimKey),
		Stamp:     stringClaim(private, stampClaimKey),
		ExpiresAt: token.Expiration(),
	}
	if claims.Purpose != purpose {
		return Claims{}, errors.Annotatef(ErrTokenNotValid, "issued for %q, not %q", claims.Purpose, purpose)
	}
	return claims, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
