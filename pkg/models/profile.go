package models

// AthleteTier classifies the subject whose questionnaire drives discovery
type AthleteTier string

const (
	AthleteTierHighSchool   AthleteTier = "high_school"
	AthleteTierCollege      AthleteTier = "college"
	AthleteTierSemiPro      AthleteTier = "semi_pro"
	AthleteTierProfessional AthleteTier = "professional"
)

// SearchProfile is the canonical profile derived from raw questionnaire
// answers. It is immutable per submission; every numeric field is clamped to
// its declared range at construction time and missing answers degrade to
// the defaults documented in pkg/intake.
type SearchProfile struct {
	AthleteTier          AthleteTier      `json:"athlete_tier"`
	TimeCommitment       int              `json:"time_commitment"` // 1..5
	ContentTypes         []string         `json:"content_types"`
	Categories           []string         `json:"categories"` // interest tags used as search seeds, max 3
	FollowingByPlatform  map[string]int64 `json:"following_by_platform"`
	EngagementRate       float64          `json:"engagement_rate"`        // [0,1]
	PreferredRadiusMiles float64          `json:"preferred_radius_miles"` // >= 0
	SchoolOrAffiliation  *string          `json:"school_or_affiliation,omitempty"`
}

// TotalFollowing sums the per-platform follower counts.
func (p *SearchProfile) TotalFollowing() int64 {
	var total int64
	for _, n := range p.FollowingByPlatform {
		total += n
	}
	return total
}

// PreferredRadiusMeters converts the preferred radius to meters for the
// search provider boundary.
func (p *SearchProfile) PreferredRadiusMeters() float64 {
	return p.PreferredRadiusMiles * MetersPerMile
}
