package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/jwt"
)

func TestParseFilterFlag(t *testing.T) {
	f, err := parseFilterFlag("registeredAt:between:2024-01-01,2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, report.ReportFilter{Field: "registeredAt", Operator: report.OperatorBetween, Value: "2024-01-01,2024-02-01"}, f)

	f, err = parseFilterFlag("url:Equals:http://x:8080")
	require.NoError(t, err)
	assert.Equal(t, report.OperatorEquals, f.Operator)
	assert.Equal(t, "http://x:8080", f.Value)

	_, err = parseFilterFlag("country")
	assert.Error(t, err)

	_, err = parseFilterFlag("country:like:UK")
	assert.True(t, report.IsUnsupportedOperator(err))
}

func TestRequestFlags_Build(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
template_id: player-summary
filters:
  - field: country
    operator: EQUALS
    value: UK
page_size: 25
`), 0o600))

	f := requestFlags{
		file:    path,
		filters: []string{"totalDeposits:between:10,20"},
		orderBy: []string{"-totalDeposits", "playerId"},
		page:    2,
	}
	req, err := f.build()
	require.NoError(t, err)

	assert.Equal(t, "player-summary", req.TemplateID)
	require.Len(t, req.Filters, 2)
	assert.Equal(t, report.OperatorEquals, req.Filters[0].Operator)
	assert.Equal(t, []report.OrderBy{{Field: "totalDeposits"}, {Field: "playerId", Ascending: true}}, req.OrderBy)
	assert.Equal(t, 2, req.PageNumber)
	assert.Equal(t, 25, req.PageSize)

	_, err = (&requestFlags{}).build()
	assert.Error(t, err)
}

func TestIdentityFlags_Resolve(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "playreport"}}

	tests := []struct {
		name    string
		flags   identityFlags
		want    scope.CallerScope
		wantErr bool
	}{
		{name: "admin", flags: identityFlags{role: "admin", user: "a"}, want: scope.Admin("a")},
		{name: "partner", flags: identityFlags{role: "partner", user: "p", tenants: []int64{7, 9}}, want: scope.Partner("p", 7, 9)},
		{name: "subpartner", flags: identityFlags{role: "subpartner", user: "s", tenants: []int64{7}, tracker: "aff42"}, want: scope.Subpartner("s", 7, "aff42")},
		{name: "subpartner without tenant", flags: identityFlags{role: "subpartner", user: "s"}, wantErr: true},
		{name: "unknown role", flags: identityFlags{role: "owner"}, wantErr: true},
		{name: "nothing", flags: identityFlags{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.resolve(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityFlags_ResolveToken(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "playreport"}}
	gen, err := jwt.NewGenerator(jwt.TokenConfig{Secret: "test-secret", Issuer: "playreport", TTL: time.Minute})
	require.NoError(t, err)

	token, _, err := gen.GenerateToken(scope.Partner("p-1", 7))
	require.NoError(t, err)

	f := identityFlags{token: "Bearer " + token}
	got, err := f.resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.UserID)
	assert.Equal(t, scope.RolePartner, got.Role)
	assert.Equal(t, []int64{7}, got.TenantIDs)
}
