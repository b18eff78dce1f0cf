package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/user"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
)

var usrRepo user.Repository

type syncerMock struct {
	calls int
}

func (m *syncerMock) SyncCourseCounts(context.Context) error {
	m.calls++
	return nil
}

func setup(t *testing.T) (*commandLine, *syncerMock) {
	usrRepo = inmemdb.NewUserRepository(inmemdb.NewDB())
	syncer := new(syncerMock)

	origReadPassword, origGooseRun := readPasswordFunc, gooseRunFunc
	t.Cleanup(func() { readPasswordFunc, gooseRunFunc = origReadPassword, origGooseRun })

	return &commandLine{usrRepo: usrRepo, categories: syncer}, syncer
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(_ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})
	assert.Equal(t, []string{"up", "up-to", "down-to", "status", "create"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "admin@test.cd"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-email", "admin@test.cd", "-role", "lol"}, pwd: "s3cret", wantErrStr: `invalid role "lol"`},
		{name: "create admin", args: []string{"adduser", "-email", " Admin@Test.cd "}, pwd: "s3cret"},
	})

	usr, err := usrRepo.GetUserByEmail(ctx, "admin@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "admin", usr.Name)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.NoError(t, usr.CheckPassword("s3cret"))

	runCLITests(t, cli, []cliTest{
		{name: "update existing", args: []string{"adduser", "-email", "admin@test.cd", "-name", "Prof", "-role", "instructor"}, pwd: "n3w-s3cret"},
	})

	updated, err := usrRepo.GetUserByEmail(ctx, "admin@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, updated.ID)
	assert.Equal(t, "Prof", updated.Name)
	assert.Equal(t, user.RoleInstructor, updated.Role)
	assert.NoError(t, updated.CheckPassword("n3w-s3cret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	usr := user.User{Name: "Amani", Email: "amani@test.cd", Role: user.RoleStudent}
	require.NoError(t, usr.SetPassword("s3cret"))
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "amani@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AMANI@test.cd"}, pwd: "n3w-s3cret"},
	})

	refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("n3w-s3cret"))
}

func Test_commandLine_syncCategories(t *testing.T) {
	cli, syncer := setup(t)
	runCLITests(t, cli, []cliTest{{name: "sync", args: []string{"synccategories"}}})
	assert.Equal(t, 1, syncer.calls)
}
