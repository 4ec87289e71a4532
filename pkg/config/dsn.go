package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// postgresURL builds a DSN from the discrete host fields. Host, user and
// database name are mandatory; password and sslmode are optional.
func (db DBConfig) postgresURL() (string, error) {
	var missing []string
	for i, value := range []string{db.Host, db.User, db.Name} {
		if value == "" {
			missing = append(missing, hostDBEnvVars[i])
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String(), nil
}
