package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/scope"
)

const testSecret = "test-secret-key-at-least-32-bytes-long"

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(TokenConfig{Secret: testSecret, Issuer: "playreport", TTL: time.Hour})
	require.NoError(t, err)
	return g
}

func TestNewGenerator_RequiresSecret(t *testing.T) {
	_, err := NewGenerator(TokenConfig{})
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	g := newTestGenerator(t)

	tests := []struct {
		name     string
		identity scope.CallerScope
	}{
		{"admin", scope.Admin("u-admin")},
		{"partner", scope.Partner("u-partner", 12, 7)},
		{"subpartner with tracker", scope.Subpartner("u-sub", 7, "trk-55")},
		{"subpartner without tracker", scope.Subpartner("u-sub", 7, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := g.GenerateToken(tt.identity)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

			got, err := g.Authenticate(token)
			require.NoError(t, err)
			assert.Equal(t, tt.identity, got)
		})
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	g := newTestGenerator(t)

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		c := Claims{Role: "admin"}
		c.Subject = "u1"
		c.Issuer = "playreport"
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		return c
	}

	t.Run("wrong secret", func(t *testing.T) {
		_, err := g.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("another-secret"), valid()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := valid()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := g.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := valid()
		c.Issuer = "elsewhere"
		_, err := g.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		_, err := g.ValidateToken(sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := g.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims_CallerScope(t *testing.T) {
	t.Run("unknown role fails closed", func(t *testing.T) {
		c := &Claims{Role: "superuser"}
		c.Subject = "u1"
		_, err := c.CallerScope()
		assert.ErrorIs(t, err, scope.ErrUnknownRole)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := (&Claims{Role: "admin"}).CallerScope()
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("subpartner without tenant is left to the resolver", func(t *testing.T) {
		c := &Claims{Role: "subpartner"}
		c.Subject = "u1"
		id, err := c.CallerScope()
		require.NoError(t, err)
		assert.Nil(t, id.TenantID)

		_, err = scope.NewResolver().Resolve(id)
		assert.ErrorIs(t, err, scope.ErrMissingTenantAssignment)
	})

	t.Run("claims do not alias caller slices", func(t *testing.T) {
		c := &Claims{Role: "partner", WhiteLabelIDs: []int64{1, 2}}
		c.Subject = "u1"
		id, err := c.CallerScope()
		require.NoError(t, err)
		c.WhiteLabelIDs[0] = 99
		assert.Equal(t, []int64{1, 2}, id.TenantIDs)
	})
}
