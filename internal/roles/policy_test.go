package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBothVocabularies(t *testing.T) {
	cases := map[string]Role{
		"owner":               Owner,
		"ADMIN":               Admin,
		"client":              Client,
		"partner":             Partner,
		"client_editor":       ClientEditor,
		"Client Viewer":       ClientViewer,
		"partner-admin":       PartnerAdmin,
		"partner_contributor": PartnerContributor,
		"specialty_skills":    SpecialtySkills,
	}
	for name, want := range cases {
		got, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := Parse("superuser")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

func TestRoleStringRoundTrip(t *testing.T) {
	for _, role := range All() {
		parsed, err := Parse(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}
	assert.Equal(t, "unknown", Unknown.String())
}

func TestAuthorityOrdering(t *testing.T) {
	assert.Positive(t, Compare(Owner, Admin))
	assert.Positive(t, Compare(Admin, Partner))
	assert.Positive(t, Compare(Admin, Client))
	assert.Positive(t, Compare(Partner, PartnerViewer))
	assert.Positive(t, Compare(ClientEditor, ClientViewer))
	assert.Zero(t, Compare(Partner, Client))
	assert.Negative(t, Compare(Unknown, ClientViewer))

	assert.True(t, Owner.AtLeast(Owner))
	assert.False(t, ClientViewer.AtLeast(ClientEditor))
	assert.False(t, Unknown.AtLeast(Unknown))
}

func TestAllOrderedByAuthority(t *testing.T) {
	all := All()
	require.Len(t, all, 11)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Rank(), all[i].Rank(), "%s before %s", all[i-1], all[i])
	}
}

func TestCanManageTable(t *testing.T) {
	cases := []struct {
		actor  Role
		target Role
		want   bool
	}{
		{Owner, Owner, true},
		{Owner, Admin, true},
		{Owner, ClientViewer, true},
		{Admin, Owner, false},
		{Admin, Admin, false},
		{Admin, Client, true},
		{Admin, Partner, true},
		{Admin, ClientServices, true},
		{Partner, ClientEditor, true},
		{Partner, ClientViewer, false},
		{Partner, Partner, false},
		{PartnerAdmin, ClientEditor, true},
		{PartnerContributor, ClientEditor, true},
		{PartnerViewer, ClientEditor, false},
		{Client, ClientEditor, false},
		{ClientEditor, ClientViewer, false},
		{ClientServices, ClientViewer, false},
		{Unknown, ClientEditor, false},
		{Owner, Unknown, false},
		{Admin, Unknown, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanManage(tc.actor, tc.target), "%s manages %s", tc.actor, tc.target)
	}
}

func TestCanManageOwnerCoversEveryRole(t *testing.T) {
	for _, target := range All() {
		assert.True(t, CanManage(Owner, target), target.String())
	}
}

func TestManageable(t *testing.T) {
	assert.Equal(t, []Role{ClientEditor}, Manageable(Partner))
	assert.Empty(t, Manageable(ClientViewer))
	adminCan := Manageable(Admin)
	assert.NotContains(t, adminCan, Owner)
	assert.NotContains(t, adminCan, Admin)
	assert.Contains(t, adminCan, ClientViewer)
}

func TestPermittedActions(t *testing.T) {
	assert.True(t, Can(Owner, ActionCompanyCreate))
	assert.True(t, Can(Admin, ActionActivityRead))
	assert.False(t, Can(Partner, ActionCompanyCreate))
	assert.True(t, Can(Partner, ActionUserManage))
	assert.True(t, Can(Client, ActionAccessRequestReview))
	assert.True(t, Can(ClientEditor, ActionAccessRequestReview))
	assert.False(t, Can(ClientViewer, ActionProjectCreate))
	assert.False(t, Can(Unknown, ActionProjectCreate))
	assert.Empty(t, PermittedActions(PartnerViewer))

	set := PermittedActions(Owner)
	delete(set, ActionCompanyCreate)
	assert.True(t, Can(Owner, ActionCompanyCreate), "PermittedActions must return a copy")
}

func TestActionSetSorted(t *testing.T) {
	set := PermittedActions(ClientEditor)
	assert.Equal(t, []Action{ActionAccessRequestReview, ActionAuditCreate, ActionProjectCreate}, set.Sorted())
}

func TestRoleTextMarshalling(t *testing.T) {
	text, err := ClientEditor.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "client_editor", string(text))

	var r Role
	require.NoError(t, r.UnmarshalText([]byte("partner_viewer")))
	assert.Equal(t, PartnerViewer, r)
	assert.Error(t, r.UnmarshalText([]byte("nobody")))

	_, err = Unknown.MarshalText()
	assert.Error(t, err)
}
