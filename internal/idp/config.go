// Package idp is the client side of the external identity provider. Broker
// caches the service-account token; Gateway wraps the admin and end-user
// REST operations and maps failures onto the apperr kinds.
package idp

import (
	"net/url"
	"strings"
	"time"
)

// Config locates the identity provider realm and the clients used against it.
type Config struct {
	BaseURL           string
	Realm             string
	AdminClientID     string
	AdminClientSecret string
	PublicClientID    string
	Timeout           time.Duration
	TokenSkew         time.Duration
}

func (c Config) realmURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + url.PathEscape(c.Realm)
}

func (c Config) adminURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/admin/realms/" + url.PathEscape(c.Realm)
}

func (c Config) tokenURL() string      { return c.realmURL() + "/protocol/openid-connect/token" }
func (c Config) userInfoURL() string   { return c.realmURL() + "/protocol/openid-connect/userinfo" }
func (c Config) introspectURL() string { return c.tokenURL() + "/introspect" }
func (c Config) logoutURL() string     { return c.realmURL() + "/protocol/openid-connect/logout" }

func (c Config) usersURL() string { return c.adminURL() + "/users" }

func (c Config) userURL(externalID string) string {
	return c.usersURL() + "/" + url.PathEscape(externalID)
}

func (c Config) roleURL(name string) string {
	return c.adminURL() + "/roles/" + url.PathEscape(name)
}
