package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

type newUserArgs struct {
	name, uname, email, pwd string
	isAdmin, isTeacher      bool
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(args.uname, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	name := core.CleanString(args.name)
	if name == "" {
		name = uname
	}

	var roles []string
	if args.isAdmin {
		roles = append(roles, user.RoleAdminOwner)
	}
	if args.isTeacher {
		roles = append(roles, user.RoleTeacher)
	}

	usr, err := cli.findUser(ctx, uname, email)
	switch {
	case err == nil:
		active := true
		uu := user.UpdateUser{Name: args.name, IsActive: &active, Password: args.pwd}
		if roles != nil {
			uu.Roles = mergeRoles(usr.Roles, roles)
		}
		if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
			return errors.Wrap(err, "updating user")
		}
	case errors.Cause(err) == user.ErrNotFound:
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Username: uname,
			Email:    email,
			Password: args.pwd,
			Roles:    roles,
		})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
	default:
		return err
	}

	if args.isTeacher {
		if _, err = cli.schoolSvc.AddTeacher(ctx, usr.ID); err != nil && !core.IsConflict(err) {
			return errors.Wrap(err, "registering teacher")
		}
	}
	return nil
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, id := range []string{uname, email} {
		if id == "" {
			continue
		}
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, id)
		if errors.Cause(err) == user.ErrNotFound {
			continue
		}
		return usr, err
	}
	return user.User{}, user.ErrNotFound
}

func mergeRoles(current, added []string) []string {
	merged := append([]string(nil), current...)
	for _, role := range added {
		var has bool
		for _, r := range current {
			if r == role {
				has = true
				break
			}
		}
		if !has {
			merged = append(merged, role)
		}
	}
	return merged
}
