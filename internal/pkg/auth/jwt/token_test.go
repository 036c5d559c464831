package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{Username: "alice", Role: "USER"}, testSecret, time.Hour)
	req.NoError(err)

	payload, err := ParseToken(token, testSecret)
	req.NoError(err)
	req.Equal("alice", payload.Username)
	req.Equal("USER", payload.Role)
	req.Equal(TokenIssuer, payload.Issuer)
}

func TestParse_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{Username: "alice"}, testSecret, time.Hour)
	req.NoError(err)

	_, err = ParseToken(token, "other-secret")
	req.Error(err)
}

func TestParse_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{Username: "alice"}, testSecret, -time.Minute)
	req.NoError(err)

	_, err = ParseToken(token, testSecret)
	req.Error(err)
}

func TestParse_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	require.Error(t, err)
}

func TestGenerate_RegisteredClaimsAreTopLevel(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(&Payload{Username: "alice", Epoch: 3}, testSecret, time.Hour)
	req.NoError(err)

	parts := strings.Split(token, ".")
	req.Len(parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	req.NoError(err)

	var claims map[string]any
	req.NoError(json.Unmarshal(raw, &claims))
	req.Contains(claims, "exp")
	req.Contains(claims, "iat")
	req.Equal(TokenIssuer, claims["iss"])
	req.Equal("alice", claims["sub"])
	req.EqualValues(3, claims["epoch"])
	req.NotContains(claims, "standard_claims")
}
