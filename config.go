package rbackit

import (
	"fmt"
	"net/url"

	"github.com/fernandezvara/dbkit"
)

// Engine selects the backend dialect. Backends are chosen here, at
// construction time; there is no runtime name-based dispatch.
//
// URL renders a DSN for all three engines, but the bundled dbkit backend
// runs on the postgres driver only: Open accepts EnginePostgres and fails
// with ErrStorage for the others.
type Engine string

const (
	EngineMySQL    Engine = "mysql"
	EnginePostgres Engine = "postgres"
	EngineSQLite   Engine = "sqlite"
)

// DefaultTablePrefix is prepended to every RBACKit table name unless the
// Config overrides it.
const DefaultTablePrefix = "rbac_"

// Config describes how to reach the backing database.
//
// Exactly one of Host, Socket or FilePath applies, depending on the engine:
// network engines use Host (or Socket for MySQL), sqlite uses FilePath.
type Config struct {
	Engine   Engine
	Host     string
	Socket   string
	FilePath string
	Port     int
	Database string
	User     string
	Password string

	// TablePrefix is prepended to all table names; defaults to "rbac_".
	TablePrefix string

	// UsePersistentConnection keeps connections alive across calls by
	// retaining idle pool connections instead of closing them eagerly.
	UsePersistentConnection bool
}

// prefix returns the effective table prefix.
func (c Config) prefix() string {
	if c.TablePrefix == "" {
		return DefaultTablePrefix
	}
	return c.TablePrefix
}

// URL renders the configuration as a DSN for dbkit.
func (c Config) URL() (string, error) {
	switch c.Engine {
	case EnginePostgres:
		host := c.Host
		if host == "" {
			host = "localhost"
		}
		if c.Port != 0 {
			host = fmt.Sprintf("%s:%d", host, c.Port)
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   host,
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
		return u.String(), nil

	case EngineMySQL:
		var addr string
		if c.Socket != "" {
			addr = fmt.Sprintf("unix(%s)", c.Socket)
		} else {
			host := c.Host
			if host == "" {
				host = "localhost"
			}
			port := c.Port
			if port == 0 {
				port = 3306
			}
			addr = fmt.Sprintf("tcp(%s:%d)", host, port)
		}
		cred := c.User
		if c.Password != "" {
			cred += ":" + c.Password
		}
		return fmt.Sprintf("mysql://%s@%s/%s", cred, addr, c.Database), nil

	case EngineSQLite:
		if c.FilePath == "" {
			return "", NewError(ErrInvalidReference, "sqlite engine requires FilePath")
		}
		return "sqlite://" + c.FilePath, nil

	case "":
		return "", NewError(ErrInvalidReference, "engine is required")

	default:
		return "", NewError(ErrInvalidReference, fmt.Sprintf("unknown engine %q", c.Engine))
	}
}

// Open builds a dbkit instance from the configuration. Only EnginePostgres
// can be opened; other engines fail with ErrStorage rather than reaching a
// driver that cannot parse their DSN.
//
// Example:
//
//	db, err := rbackit.Open(rbackit.Config{
//	    Engine:   rbackit.EnginePostgres,
//	    Host:     "localhost",
//	    Database: "app",
//	    User:     "app",
//	    Password: "secret",
//	})
func Open(c Config) (*dbkit.DBKit, error) {
	dsn, err := c.URL()
	if err != nil {
		return nil, err
	}
	if c.Engine != EnginePostgres {
		return nil, NewError(ErrStorage,
			fmt.Sprintf("engine %q is not served by the postgres backend", c.Engine))
	}

	db, err := dbkit.New(dbkit.Config{URL: dsn})
	if err != nil {
		return nil, StorageError(err, "failed to open database")
	}

	if !c.UsePersistentConnection {
		// Short-lived connections: keep the idle pool empty so every call
		// dials fresh, matching non-persistent behavior.
		if bunDB := db.Bun(); bunDB != nil {
			bunDB.SetMaxIdleConns(0)
		}
	}

	return db, nil
}

// OpenService opens the database described by the configuration and wraps
// it in a Service honoring the configured table prefix.
func OpenService(c Config) (*Service, error) {
	db, err := Open(c)
	if err != nil {
		return nil, err
	}
	return NewService(db, WithTablePrefix(c.prefix())), nil
}

// validPrefix reports whether a prefix is safe to interpolate into SQL.
// Table names cannot be bound as parameters, so the prefix is restricted to
// identifier characters.
func validPrefix(prefix string) bool {
	if prefix == "" {
		return true
	}
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
