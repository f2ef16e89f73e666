package signals_test

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/signals"
)

func TestExtractDeterministic(t *testing.T) {
	a := artifacts.Artifact{
		FeatureID:   "feat-1",
		Title:       "Personalized feed for teens",
		Description: "Recommendation ranking in the EU with an appeal flow",
		CodeHints:   []string{`if user.region == "EU" { rank() }`, "ageGate(user)"},
		Tags:        []string{"Recommender", "feed ranking", "recommender"},
	}

	first := signals.Extract(a)
	for range 10 {
		if got := signals.Extract(a); !got.Equal(first) {
			t.Fatalf("extract not deterministic:\n%s", cmp.Diff(first, got))
		}
	}
}

func TestExtractIgnoresTagOrder(t *testing.T) {
	base := artifacts.Artifact{
		FeatureID:   "feat-2",
		Title:       "Creator tools",
		Description: "Dashboard",
		Tags:        []string{"alpha", "Beta", "gamma ray", "delta-force"},
	}
	reordered := base
	reordered.Tags = []string{"delta-force", "gamma ray", "alpha", "Beta"}

	a, b := signals.Extract(base), signals.Extract(reordered)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("tag order changed the set (-base +reordered):\n%s", diff)
	}

	want := []string{"alpha", "beta", "delta_force", "gamma_ray"}
	if diff := cmp.Diff(want, a.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestExtractMatchers(t *testing.T) {
	tests := []struct {
		name    string
		art     artifacts.Artifact
		want    []string
		notWant []string
	}{
		{
			name: "personalization and ranking",
			art:  artifacts.Artifact{Title: "Personalized feed", Description: "Posts are ranked by engagement"},
			want: []string{"personalization", "ranking"},
		},
		{
			name: "minors and parental controls",
			art:  artifacts.Artifact{Title: "Teen mode", Description: "Parental dashboard for users under 16"},
			want: []string{"minors"},
		},
		{
			name: "moderation and appeals",
			art:  artifacts.Artifact{Title: "Takedown appeals", Description: "Users can appeal content moderation decisions"},
			want: []string{"moderation", "appeals"},
		},
		{
			name: "child safety terminology",
			art:  artifacts.Artifact{Title: "NCMEC reporting", Description: "Report CSAM to the clearinghouse"},
			want: []string{"child_safety"},
		},
		{
			name: "jurisdiction names",
			art:  artifacts.Artifact{Title: "Rollout", Description: "Launch in Germany, California and the United Kingdom"},
			want: []string{"geo_eu", "geo_us", "geo_uk"},
		},
		{
			name:    "acronyms are case sensitive",
			art:     artifacts.Artifact{Title: "Share with us", Description: "Tell us about your eu-phoria"},
			notWant: []string{"geo_us", "geo_eu"},
		},
		{
			name: "acronyms in capitals",
			art:  artifacts.Artifact{Title: "EU and US launch", Description: "Also the UK"},
			want: []string{"geo_eu", "geo_us", "geo_uk"},
		},
		{
			name: "region check in code hint",
			art: artifacts.Artifact{
				Title: "Banner", Description: "Promo",
				CodeHints: []string{`if country_code in ("US", "CA") { show() }`},
			},
			want: []string{"geo_targeting", "geo_us"},
		},
		{
			name: "age comparison in code hint",
			art: artifacts.Artifact{
				Title: "Signup", Description: "Onboarding",
				CodeHints: []string{"if user.age < 18 { restrict() }"},
			},
			want: []string{"age_gate", "minors"},
		},
		{
			name: "adult age threshold",
			art: artifacts.Artifact{
				Title: "Signup", Description: "Onboarding",
				CodeHints: []string{"if userAge >= 21 { allowAlcoholAds() }"},
			},
			want:    []string{"age_gate"},
			notWant: []string{"minors"},
		},
		{
			name: "age gate call",
			art: artifacts.Artifact{
				Title: "Checkout", Description: "Payments",
				CodeHints: []string{"verifyAge(session)"},
			},
			want: []string{"age_gate"},
		},
		{
			name: "words containing age do not fire",
			art: artifacts.Artifact{
				Title: "Pager", Description: "Paging",
				CodeHints: []string{"if page < 10 { next() }", "usage >= 5"},
			},
			notWant: []string{"age_gate", "minors"},
		},
		{
			name: "nothing matches",
			art:  artifacts.Artifact{Title: "Dark theme", Description: "Adds a dark color palette"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := signals.Extract(tt.art)
			for _, tag := range tt.want {
				if !got.Has(tag) {
					t.Errorf("missing tag %q in %v", tag, got.Tags)
				}
			}
			for _, tag := range tt.notWant {
				if got.Has(tag) {
					t.Errorf("unexpected tag %q in %v", tag, got.Tags)
				}
			}
			if tt.want == nil && tt.notWant == nil && len(got.Tags) != 0 {
				t.Errorf("tags: got %v, want none", got.Tags)
			}
			if !slices.IsSorted(got.Tags) {
				t.Errorf("tags not sorted: %v", got.Tags)
			}
		})
	}
}

func TestHintsAndQuery(t *testing.T) {
	a := artifacts.Artifact{
		Title:       "Geo banner",
		Description: "Shows a banner",
		CodeHints:   []string{"  geofence(us) ", "", "geofence(us)", "ageGate()"},
	}

	set := signals.Extract(a)
	wantHints := []string{"geofence(us)", "ageGate()"}
	if diff := cmp.Diff(wantHints, set.Hints); diff != "" {
		t.Errorf("hints (-want +got):\n%s", diff)
	}

	want := "Geo banner Shows a banner geofence(us) ageGate()"
	if got := signals.Query(a, set); got != want {
		t.Errorf("query: got %q, want %q", got, want)
	}
}

func TestNormalizeAndUnion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Recommender", "recommender"},
		{"  age  gate ", "age_gate"},
		{"child-safety", "child_safety"},
		{"geo__eu", "geo_eu"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := signals.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}

	got := signals.Union([]string{"minors", "Geo EU"}, []string{"geo_eu", "", "ads"})
	want := []string{"ads", "geo_eu", "minors"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("union (-want +got):\n%s", diff)
	}
}
