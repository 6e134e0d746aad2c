package commands

import (
	"context"
	"fmt"
)

// register installs every Permissions.* command
func (d *Dispatcher) register() {
	svc := d.svc

	d.add(&command{name: "Permissions.Add", success: "Successfully added player.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			return "", svc.AddPlayerToGroup(ctx, args[0], args[1])
		}})

	d.add(&command{name: "Permissions.Remove", success: "Successfully removed player.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			return "", svc.RemovePlayerFromGroup(ctx, args[0], args[1])
		}})

	d.add(&command{name: "Permissions.AddTimed", success: "Successfully added player to timed group.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 3 {
				return "", errPlayerTimed
			}
			secs, delay, err := parseTimed(args[2:], errPlayerTimed)
			if err != nil {
				return "", err
			}
			return "", svc.AddPlayerToTimedGroup(ctx, args[0], args[1], secs, delay)
		}})

	d.add(&command{name: "Permissions.RemoveTimed", success: "Successfully removed player from timed group.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			return "", svc.RemovePlayerFromTimedGroup(ctx, args[0], args[1])
		}})

	d.add(&command{name: "Permissions.AddTribe", success: "Successfully added tribe.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			tribeID, err := parseTribeID(args[0])
			if err != nil {
				return "", err
			}
			return "", svc.AddTribeToGroup(ctx, tribeID, args[1])
		}})

	d.add(&command{name: "Permissions.RemoveTribe", success: "Successfully removed tribe.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			tribeID, err := parseTribeID(args[0])
			if err != nil {
				return "", err
			}
			return "", svc.RemoveTribeFromGroup(ctx, tribeID, args[1])
		}})

	d.add(&command{name: "Permissions.AddTribeTimed", success: "Successfully added tribe to timed group.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 3 {
				return "", errTribeTimed
			}
			tribeID, err := parseTribeID(args[0])
			if err != nil {
				return "", err
			}
			secs, delay, err := parseTimed(args[2:], errTribeTimed)
			if err != nil {
				return "", err
			}
			return "", svc.AddTribeToTimedGroup(ctx, tribeID, args[1], secs, delay)
		}})

	d.add(&command{name: "Permissions.RemoveTribeTimed", success: "Successfully removed tribe from timed group.",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			tribeID, err := parseTribeID(args[0])
			if err != nil {
				return "", err
			}
			return "", svc.RemoveTribeFromTimedGroup(ctx, tribeID, args[1])
		}})

	d.add(&command{name: "Permissions.AddGroup", success: "Successfully added group",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 1 {
				return "", errWrongSyntax
			}
			return "", svc.AddGroup(ctx, args[0])
		}})

	d.add(&command{name: "Permissions.RemoveGroup", success: "Successfully removed group",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 1 {
				return "", errWrongSyntax
			}
			return "", svc.RemoveGroup(ctx, args[0])
		}})

	d.add(&command{name: "Permissions.Grant", success: "Successfully granted permission",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			return "", svc.GroupGrantPermission(ctx, args[0], args[1])
		}})

	d.add(&command{name: "Permissions.Revoke", success: "Successfully revoked permission",
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 2 {
				return "", errWrongSyntax
			}
			return "", svc.GroupRevokePermission(ctx, args[0], args[1])
		}})

	// Listing commands reply with an empty string on missing arguments
	d.add(&command{name: "Permissions.PlayerGroups", kind: kindListing,
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 1 {
				return "", nil
			}
			return svc.PlayerGroupsString(ctx, args[0], false)
		}})

	d.add(&command{name: "Permissions.TribeGroups", kind: kindListing,
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 1 {
				return "", nil
			}
			tribeID, err := parseTribeID(args[0])
			if err != nil {
				d.logger.WithField("tribe_id", args[0]).Debug("Unparseable tribe ID")
				return "", nil
			}
			return svc.TribeGroupsString(ctx, "", tribeID, false)
		}})

	d.add(&command{name: "Permissions.GroupPermissions", kind: kindListing,
		run: func(ctx context.Context, args []string) (string, error) {
			if len(args) < 1 {
				return "", nil
			}
			return svc.GroupPermissionsString(ctx, args[0])
		}})

	d.add(&command{name: "Permissions.ListGroups", kind: kindListing,
		run: func(ctx context.Context, _ []string) (string, error) {
			return svc.ListGroups(ctx)
		}})

	d.add(&command{name: "Permissions.Reload", kind: kindReload,
		run: func(ctx context.Context, _ []string) (string, error) {
			if d.reload == nil {
				return "", fmt.Errorf("reload is not configured")
			}
			settings, err := d.reload(ctx)
			if err != nil {
				return "", err
			}
			d.SetSettings(settings)
			return "", nil
		}})
}
