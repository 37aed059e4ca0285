package main

import (
	"fmt"

	echoapi "github.com/trezcool/orbit/apps/api/echo"
	"github.com/trezcool/orbit/core"
)

var errInvalidRole = core.NewValidationError(nil, core.FieldError{Field: "role", Error: "must be faculty or student"})

// token prints a signed API token, for local testing against the API.
func (cli *commandLine) token(secret, email, name, role string) error {
	if role != echoapi.RoleFaculty && role != echoapi.RoleStudent {
		return errInvalidRole
	}
	conf := *cli.conf
	conf.SecretKey = secret

	token, err := echoapi.GenerateToken(&conf, echoapi.NewClaims(&conf, email, name, role))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.output(), token)
	return err
}
