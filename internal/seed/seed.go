package seed

import (
	"context"

	"github.com/mbelkin/auth-service/internal/logging"
	"github.com/mbelkin/auth-service/internal/repo"
)

// DefaultRoles must exist before the service accepts traffic;
// registration fails hard without the "user" role.
var DefaultRoles = []string{"user", "admin"}

// Roles upserts the default role set. Safe to run on every boot.
func Roles(ctx context.Context, roles *repo.RoleRepo) error {
	l := logging.FromContext(ctx).With("svc", "seed.roles")

	for _, name := range DefaultRoles {
		if _, err := roles.Ensure(ctx, name); err != nil {
			return err
		}
		l.Info("role ensured", "role", name)
	}

	return nil
}
