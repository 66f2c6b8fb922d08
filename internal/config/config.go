package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  A Config is built once at startup and handed to
// constructors by value; nothing mutates it afterwards.
type Config struct {
    Env              string        // application environment ("development" or "production")
    Port             string        // HTTP port to listen on
    DBUser           string        // database username
    DBPass           string        // database password (optional)
    DBHost           string        // database host address
    DBPort           string        // database port number
    DBName           string        // database name
    JWTSecret        string        // secret used to sign session tokens
    JWTTTL           time.Duration // session token lifetime
    CookieTTL        time.Duration // lifetime of the jwt cookie
    BcryptCost       int           // bcrypt cost for password hashing
    ResetTokenTTL    time.Duration // password reset token lifetime
    PublicURL        string        // base URL used when building links in mail
    Mail             MailConfig    // broker settings for outbound mail
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:           must("APP_ENV"),
        Port:          must("APP_PORT"),
        DBUser:        must("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"), // empty allowed
        DBHost:        must("DB_HOST"),
        DBPort:        must("DB_PORT"),
        DBName:        must("DB_NAME"),
        JWTSecret:     must("JWT_SECRET"),
        JWTTTL:        time.Duration(mustInt("JWT_EXPIRES_IN_DAYS")) * 24 * time.Hour,
        CookieTTL:     time.Duration(envInt("JWT_COOKIE_EXPIRES_IN_DAYS", 90)) * 24 * time.Hour,
        BcryptCost:    envInt("BCRYPT_COST", 12),
        ResetTokenTTL: envDur("RESET_TOKEN_TTL", 10*time.Minute),
        PublicURL:     strings.TrimRight(envStr("PUBLIC_URL", "http://localhost:"+envStr("APP_PORT", "3000")), "/"),
        Mail:          LoadMailConfig(),
    }
}

// IsProduction reports whether errors should be rendered without internals.
func (c Config) IsProduction() bool {
    switch strings.ToLower(c.Env) {
    case "prod", "production":
        return true
    }
    return false
}

// DSN returns the go-sql-driver DSN for the configured database.
func (c Config) DSN() string {
    auth := c.DBUser
    if c.DBPass != "" {
        auth = c.DBUser + ":" + c.DBPass
    }
    // parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
    // clientFoundRows=true -> UPDATE reports matched rows, not changed rows
    return auth + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName +
        "?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
