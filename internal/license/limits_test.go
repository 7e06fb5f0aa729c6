package license

import "testing"

func TestTierLimits(t *testing.T) {
	t.Run("free", func(t *testing.T) {
		l := FreeLimits()
		if l.Monitors != 5 || l.StatusPages != 1 || l.TeamMembers != 1 || l.Regions != 1 {
			t.Errorf("unexpected free limits: %+v", l)
		}
		if l.MinCheckInterval != 600 || l.DataRetention != 14 {
			t.Errorf("unexpected free intervals: %+v", l)
		}
		if l.EnterpriseFeatures {
			t.Error("free tier should not have enterprise features")
		}
	})

	t.Run("professional", func(t *testing.T) {
		l := ProfessionalLimits()
		if l.Monitors != 50 || l.StatusPages != 5 || l.TeamMembers != 10 || l.Regions != 6 {
			t.Errorf("unexpected professional limits: %+v", l)
		}
	})

	t.Run("enterprise", func(t *testing.T) {
		l := EnterpriseLimits()
		if !IsUnlimited(l.Monitors) || !IsUnlimited(l.AlertChannels) {
			t.Errorf("expected unlimited enterprise defaults, got %+v", l)
		}
		if !l.EnterpriseFeatures {
			t.Error("enterprise tier should have enterprise features")
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		l := UnlimitedLimits()
		for _, v := range []int{l.Monitors, l.StatusPages, l.TeamMembers, l.Regions, l.AlertChannels, l.MinCheckInterval, l.DataRetention} {
			if v != Unlimited {
				t.Errorf("expected %d, got %d", Unlimited, v)
			}
		}
	})
}

func TestIsLimitExceeded(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		count int
		want  bool
	}{
		{"under limit", 5, 3, false},
		{"at limit", 5, 5, true},
		{"over limit", 5, 7, true},
		{"zero limit", 0, 0, true},
		{"unlimited", Unlimited, 1000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLimitExceeded(tt.limit, tt.count); got != tt.want {
				t.Errorf("IsLimitExceeded(%d, %d) = %v, want %v", tt.limit, tt.count, got, tt.want)
			}
		})
	}
}

func TestCanAddResource(t *testing.T) {
	free := FreeLimits()

	tests := []struct {
		name   string
		limits OrganizationLimits
		res    Resource
		count  int
		want   bool
	}{
		{"first monitor", free, ResourceMonitors, 0, true},
		{"monitors full", free, ResourceMonitors, 5, false},
		{"second status page", free, ResourceStatusPages, 1, false},
		{"alert channel", free, ResourceAlertChannels, 0, true},
		{"unlimited regions", UnlimitedLimits(), ResourceRegions, 500, true},
		{"unknown resource", UnlimitedLimits(), Resource("api_keys"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAddResource(tt.limits, tt.res, tt.count); got != tt.want {
				t.Errorf("CanAddResource(%s, %d) = %v, want %v", tt.res, tt.count, got, tt.want)
			}
		})
	}
}

func TestOrganizationLimits_Limit(t *testing.T) {
	l := ProfessionalLimits()

	if v, ok := l.Limit(ResourceTeamMembers); !ok || v != 10 {
		t.Errorf("Limit(team_members) = %d, %v", v, ok)
	}
	if _, ok := l.Limit(Resource("")); ok {
		t.Error("expected unknown resource to report ok=false")
	}
}
