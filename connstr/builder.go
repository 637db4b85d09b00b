// Package connstr builds and validates data-dependent-routing (DDR)
// connection strings: it rejects caller-supplied data source/catalog and
// client-side reconnect, injects the resolved shard's location, and tags
// ApplicationName so kill-sessions can target exactly the sessions this
// library opened (spec §4.K).
package connstr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/shardmap"
)

// Credential is an opaque credential provider: the core never acquires
// credentials itself (spec §1), it only consumes whatever this interface
// produces to populate the connection string.
type Credential interface {
	// ConnectionOptions returns the auth-related key/value pairs to merge
	// into the connection string (e.g. "User Id"/"Password", or an
	// Azure-AD-token option). Implementations decide their own auth mode.
	ConnectionOptions() map[string]string
}

// ErrCallerSuppliedDataSource is returned when the caller-supplied
// connection string names its own server or database; DDR connections are
// always routed by the library, never by the caller.
var ErrCallerSuppliedDataSource = fmt.Errorf("connstr: DataSource/Initial Catalog must not be set on a DDR connection string")

// ErrClientSideReconnect is returned when the caller's connection string
// enables ConnectRetryCount, which would silently hide a mapping switch
// behind an automatic reconnect to the old shard.
var ErrClientSideReconnect = fmt.Errorf("connstr: ConnectRetryCount must be 0 or 1 on a DDR connection string")

// applicationNameVersion is the "vMAJOR.MINOR" tag embedded in every
// ApplicationName suffix this builder emits.
const applicationNameVersion = "1.3"

// Builder validates a caller-supplied template connection string and
// produces one DDR connection string per resolved shard.
type Builder struct {
	Credential Credential
}

// ForShard validates template, rejects disallowed keys, merges in
// credentials, sets DataSource/Initial Catalog from loc, and appends the
// ESC_v<major><minor>_<shardMapId> ApplicationName suffix.
func (b *Builder) ForShard(template string, loc shardmap.Location, shardMapID uuid.UUID) (string, error) {
	opts, err := Parse(template)
	if err != nil {
		return "", err
	}
	for _, k := range []string{"data source", "datasource", "initial catalog", "initialcatalog"} {
		if _, ok := opts[k]; ok {
			return "", ErrCallerSuppliedDataSource
		}
	}
	for _, k := range []string{"connect retry count", "connectretrycount"} {
		if v, ok := opts[k]; ok {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n > 1 {
				return "", ErrClientSideReconnect
			}
		}
	}
	if b.Credential == nil {
		return "", fmt.Errorf("connstr: a credential provider is required")
	}
	for k, v := range b.Credential.ConnectionOptions() {
		opts[k] = v
	}

	opts["data source"] = loc.ServerName
	if loc.Port != 0 {
		opts["data source"] = fmt.Sprintf("%s,%d", loc.ServerName, loc.Port)
	}
	opts["initial catalog"] = loc.DatabaseName

	suffix := fmt.Sprintf("ESC_v%s_%s", applicationNameVersion, shardMapID.String())
	if existing, ok := opts["application name"]; ok && existing != "" {
		opts["application name"] = existing + "-" + suffix
	} else {
		opts["application name"] = suffix
	}

	return serialize(opts), nil
}

// Parse splits a semicolon-delimited "key=value" connection string into a
// case-insensitive option map, trimming whitespace around keys and values.
func Parse(s string) (map[string]string, error) {
	opts := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("connstr: malformed option %q", part)
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		opts[key] = strings.TrimSpace(kv[1])
	}
	return opts, nil
}

func serialize(opts map[string]string) string {
	var b strings.Builder
	for k, v := range opts {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(';')
	}
	return b.String()
}
