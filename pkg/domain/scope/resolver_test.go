package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/pkg/domain/shared"
)

func ptr[T any](v T) *T { return &v }

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		identity CallerScope
		want     []MandatoryPredicate
		wantErr  error
	}{
		{
			name:     "admin is unrestricted",
			identity: Admin("u1"),
			want:     []MandatoryPredicate{},
		},
		{
			name:     "partner restricted to tenant set",
			identity: Partner("u2", 9, 3, 9),
			want: []MandatoryPredicate{
				{Target: TargetTenant, Comparison: ComparisonIn, Value: []int64{3, 9}},
			},
		},
		{
			name:     "partner without tenants is denied",
			identity: Partner("u3"),
			wantErr:  ErrNoAccessibleTenants,
		},
		{
			name:     "subpartner with tracker",
			identity: Subpartner("u4", 7, "aff42"),
			want: []MandatoryPredicate{
				{Target: TargetTenant, Comparison: ComparisonEquals, Value: int64(7)},
				{Target: TargetTracker, Comparison: ComparisonEquals, Value: "aff42"},
			},
		},
		{
			name:     "subpartner without tracker",
			identity: Subpartner("u5", 7, ""),
			want: []MandatoryPredicate{
				{Target: TargetTenant, Comparison: ComparisonEquals, Value: int64(7)},
			},
		},
		{
			name:     "subpartner with blank tracker ignores it",
			identity: CallerScope{Role: RoleSubpartner, TenantID: ptr(int64(7)), TrackerConstraint: ptr("  ")},
			want: []MandatoryPredicate{
				{Target: TargetTenant, Comparison: ComparisonEquals, Value: int64(7)},
			},
		},
		{
			name:     "subpartner without tenant is denied",
			identity: CallerScope{Role: RoleSubpartner, TrackerConstraint: ptr("aff42")},
			wantErr:  ErrMissingTenantAssignment,
		},
		{
			name:     "unknown role is denied",
			identity: CallerScope{Role: "guest"},
			wantErr:  ErrUnknownRole,
		},
		{
			name:     "zero value is denied",
			identity: CallerScope{},
			wantErr:  ErrUnknownRole,
		},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.identity)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, shared.ErrForbidden)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_DoesNotAliasCallerTenants(t *testing.T) {
	ids := []int64{5, 1}
	preds, err := NewResolver().Resolve(Partner("u", ids...))
	require.NoError(t, err)

	ids[0] = 99
	assert.Equal(t, []int64{1, 5}, preds[0].Value)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Subpartner ")
	require.NoError(t, err)
	assert.Equal(t, RoleSubpartner, r)

	_, err = ParseRole("superuser")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
