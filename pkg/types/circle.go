package types

// CircleParams holds the creation-time parameters of a lending circle.
type CircleParams struct {
	MaxMembers       int
	MonthlyAmount    uint64
	TotalRounds      int
	InterestRateBP   uint32 // basis points
	StakeRequirement uint64
}

// Circle is a rotating-savings-and-credit group. Created once, mutated
// by join (member_count, membership_root) and by round advance.
type Circle struct {
	CircleID        Hash
	Params          CircleParams
	CurrentRound    int
	MemberCount     int
	Active          bool
	MembershipRoot  Hash
	CreatedAt       uint64
	InsurancePool   uint64
}

// IsLarge reports whether this circle requires the "large circle"
// creation capability (max_members > 8).
func (c *Circle) IsLarge() bool {
	return c.Params.MaxMembers > 8
}

// IsMedium reports whether this circle requires at least the medium-circle
// capability (used for create/join gating distinct from the large case).
func (c *Circle) IsMedium() bool {
	return c.Params.MaxMembers > 4 && c.Params.MaxMembers <= 8
}
