package roles

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a name matches no role in either vocabulary.
var ErrUnknownRole = errors.New("unknown role")

// Role is the unified, authority-ordered role enumeration. Both the coarse
// access-layer names (owner, admin, client, partner) and the fine-grained
// names (client_editor, partner_viewer, ...) parse into a Role.
type Role uint8

const (
	Unknown Role = iota
	Owner
	Admin
	ClientServices
	SpecialtySkills
	Partner
	PartnerAdmin
	Client
	PartnerContributor
	ClientEditor
	PartnerViewer
	ClientViewer
)

// Family groups roles that share a policy row.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyOwner
	FamilyAdmin
	FamilyStaff
	FamilyPartner
	FamilyClient
	FamilyViewer
)

// Vocabulary records which naming scheme a role name originates from.
type Vocabulary uint8

const (
	VocabularyCoarse Vocabulary = 1 << iota
	VocabularyFine
)

type definition struct {
	name       string
	family     Family
	rank       int
	vocabulary Vocabulary
}

// mapping is the single table both vocabularies resolve through.
var mapping = map[Role]definition{
	Owner:              {name: "owner", family: FamilyOwner, rank: 100, vocabulary: VocabularyCoarse | VocabularyFine},
	Admin:              {name: "admin", family: FamilyAdmin, rank: 90, vocabulary: VocabularyCoarse | VocabularyFine},
	ClientServices:     {name: "client_services", family: FamilyStaff, rank: 70, vocabulary: VocabularyFine},
	SpecialtySkills:    {name: "specialty_skills", family: FamilyStaff, rank: 70, vocabulary: VocabularyFine},
	Partner:            {name: "partner", family: FamilyPartner, rank: 50, vocabulary: VocabularyCoarse},
	PartnerAdmin:       {name: "partner_admin", family: FamilyPartner, rank: 50, vocabulary: VocabularyFine},
	PartnerContributor: {name: "partner_contributor", family: FamilyPartner, rank: 40, vocabulary: VocabularyFine},
	Client:             {name: "client", family: FamilyClient, rank: 50, vocabulary: VocabularyCoarse},
	ClientEditor:       {name: "client_editor", family: FamilyClient, rank: 40, vocabulary: VocabularyFine},
	PartnerViewer:      {name: "partner_viewer", family: FamilyViewer, rank: 10, vocabulary: VocabularyFine},
	ClientViewer:       {name: "client_viewer", family: FamilyViewer, rank: 10, vocabulary: VocabularyFine},
}

var byName = func() map[string]Role {
	out := make(map[string]Role, len(mapping))
	for role, def := range mapping {
		out[def.name] = role
	}
	return out
}()

// Parse resolves a role name from either vocabulary. Names are matched
// case-insensitively; spaces and dashes are accepted in place of underscores.
func Parse(name string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if role, ok := byName[key]; ok {
		return role, nil
	}
	return Unknown, fmt.Errorf("%w %q", ErrUnknownRole, name)
}

// MustParse is Parse for compile-time constants in tests and seeds.
func MustParse(name string) Role {
	role, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return role
}

// All returns every known role ordered by descending authority.
func All() []Role {
	out := make([]Role, 0, len(mapping))
	for role := Owner; role <= ClientViewer; role++ {
		out = append(out, role)
	}
	return out
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := mapping[r]
	return ok
}

// String returns the canonical storage name.
func (r Role) String() string {
	if def, ok := mapping[r]; ok {
		return def.name
	}
	return "unknown"
}

// Family returns the policy family of the role.
func (r Role) Family() Family {
	return mapping[r].family
}

// Rank is the position of the role in the authority ordering.
func (r Role) Rank() int {
	return mapping[r].rank
}

// Vocabulary reports the naming schemes the role belongs to.
func (r Role) Vocabulary() Vocabulary {
	return mapping[r].vocabulary
}

// Compare orders two roles by authority: negative when a ranks below b,
// zero when equal, positive when a outranks b. Unknown roles rank lowest.
func Compare(a, b Role) int {
	return a.Rank() - b.Rank()
}

// AtLeast reports whether r carries at least the authority of other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && Compare(r, other) >= 0
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// String names the family.
func (f Family) String() string {
	switch f {
	case FamilyOwner:
		return "owner"
	case FamilyAdmin:
		return "admin"
	case FamilyStaff:
		return "staff"
	case FamilyPartner:
		return "partner"
	case FamilyClient:
		return "client"
	case FamilyViewer:
		return "viewer"
	default:
		return "none"
	}
}
