package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionDSN(t *testing.T) {
	testCases := []struct {
		desc string
		opt  Option
		want string
	}{
		{
			"defaults",
			Option{},
			"postgres://localhost:5432?sslmode=disable",
		},
		{
			"full",
			Option{Host: "db", Port: 6432, User: "bank", Password: "secret", Database: "ledger", SSLMode: "require"},
			"postgres://bank:secret@db:6432/ledger?sslmode=require",
		},
		{
			"params",
			Option{User: "bank", Database: "ledger", Params: map[string]string{"application_name": "bankd", "": "ignored"}},
			"postgres://bank@localhost:5432/ledger?application_name=bankd&sslmode=disable",
		},
		{
			"conn string wins",
			Option{ConnString: "postgres://x@y/z", Host: "ignored"},
			"postgres://x@y/z",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opt.DSN())
		})
	}
}
