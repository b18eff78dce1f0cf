package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

// addUser updates or creates a user.User with the given role.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	if !user.IsValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	if name = core.CleanString(name); name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		usr.Name = name
	case errors.Cause(err) == user.ErrNotFound:
		usr = user.User{Name: name, Email: email, CreatedAt: now}
	default:
		return err
	}
	usr.Role = role
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}

func (cli *commandLine) syncCategories() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return cli.categories.SyncCourseCounts(ctx)
}
