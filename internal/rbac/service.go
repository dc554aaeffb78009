package rbac

import "github.com/clientportal/portal/internal/roles"

// Service answers permission questions from the role policy.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// EffectivePermissions returns the actions granted to role.
func (s *Service) EffectivePermissions(role roles.Role) roles.ActionSet {
	return roles.PermittedActions(role)
}

// Catalogue describes what role may do and whom it may manage.
func (s *Service) Catalogue(role roles.Role) Catalogue {
	manageable := roles.Manageable(role)
	if manageable == nil {
		manageable = []roles.Role{}
	}
	return Catalogue{
		Role:       role,
		Family:     role.Family(),
		Actions:    roles.PermittedActions(role).Sorted(),
		Manageable: manageable,
	}
}

// ListRoles returns every role in authority order.
func (s *Service) ListRoles() []RoleInfo {
	all := roles.All()
	out := make([]RoleInfo, 0, len(all))
	for _, role := range all {
		vocab := role.Vocabulary()
		out = append(out, RoleInfo{
			Name:        role.String(),
			Family:      role.Family(),
			Rank:        role.Rank(),
			Coarse:      vocab&roles.VocabularyCoarse != 0,
			FineGrained: vocab&roles.VocabularyFine != 0,
		})
	}
	return out
}
